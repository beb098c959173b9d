package core

import "github.com/tanshoo/mimpi/pkg/mimpi/types"

// Tree topology of spec section 4.5: an implicit 1-indexed binary tree over
// 0-based ranks.
func parent(rank int) int     { return (rank+1)/2 - 1 }
func leftChild(rank int) int  { return (rank+1)*2 - 1 }
func rightChild(rank int) int { return leftChild(rank) + 1 }

// realProc remaps rank through root so Bcast/Reduce can run the tree
// protocol as if root were rank 0: it swaps rank 0 and root.
func realProc(rank, root int) int {
	if rank == root {
		return 0
	}
	if rank == 0 {
		return root
	}
	return rank
}

// Barrier implements spec section 4.5's barrier: an up-phase where every
// rank receives GROUP_BEGIN from each present child before sending it to
// its own parent, then a down-phase where GROUP_END flows back down.
func (w *World) Barrier() types.Retcode {
	done := w.collectiveTimer("barrier")
	defer done()
	return w.genericBarrier(types.TagGroupBegin, types.TagGroupEnd)
}

// genericBarrier drives the up/down tree discipline with a caller-supplied
// tag pair; Barrier uses GROUP_BEGIN/GROUP_END, Finalize reuses it with
// FINALIZE_BEGIN/FINALIZE_END (spec section 4.6).
func (w *World) genericBarrier(beginTag, endTag types.Tag) types.Retcode {
	lc, rc, p := leftChild(w.rank), rightChild(w.rank), parent(w.rank)

	if lc < w.size {
		if ret := w.Recv(nil, 0, lc, beginTag); ret != types.SUCCESS {
			return ret
		}
		if rc < w.size {
			if ret := w.Recv(nil, 0, rc, beginTag); ret != types.SUCCESS {
				return ret
			}
		}
	}
	if w.rank != 0 {
		w.Send(nil, 0, p, beginTag)
	}

	if w.rank != 0 {
		if ret := w.Recv(nil, 0, p, endTag); ret != types.SUCCESS {
			return ret
		}
	}
	if lc < w.size {
		w.Send(nil, 0, lc, endTag)
		if rc < w.size {
			w.Send(nil, 0, rc, endTag)
		}
	}

	return types.SUCCESS
}

// Bcast implements spec section 4.5: identical tree discipline to Barrier,
// but the down-phase GROUP_END carries the payload.
func (w *World) Bcast(data []byte, count int, root int) types.Retcode {
	done := w.collectiveTimer("bcast")
	defer done()

	treatAs := realProc(w.rank, root)
	lc := realProc(leftChild(treatAs), root)
	rc := realProc(rightChild(treatAs), root)
	p := realProc(parent(treatAs), root)

	if lc < w.size {
		if ret := w.Recv(nil, 0, lc, types.TagGroupBegin); ret != types.SUCCESS {
			return ret
		}
		if rc < w.size {
			if ret := w.Recv(nil, 0, rc, types.TagGroupBegin); ret != types.SUCCESS {
				return ret
			}
		}
	}
	if treatAs != 0 {
		w.Send(nil, 0, p, types.TagGroupBegin)
	}

	if treatAs != 0 {
		var buf []byte
		if count > 0 {
			buf = data[:count]
		}
		if ret := w.Recv(buf, count, p, types.TagGroupEnd); ret != types.SUCCESS {
			return ret
		}
	}
	if lc < w.size {
		w.Send(data, count, lc, types.TagGroupEnd)
		if rc < w.size {
			w.Send(data, count, rc, types.TagGroupEnd)
		}
	}

	return types.SUCCESS
}

// Reduce implements spec section 4.5's fold: each rank reduces its
// children's up-phase payloads elementwise into a scratch buffer seeded
// from its own send data; the root writes the final scratch into recvData.
func (w *World) Reduce(sendData []byte, recvData []byte, count int, op types.Op, root int) types.Retcode {
	done := w.collectiveTimer("reduce")
	defer done()

	treatAs := realProc(w.rank, root)
	lc := realProc(leftChild(treatAs), root)
	rc := realProc(rightChild(treatAs), root)
	p := realProc(parent(treatAs), root)

	var reduced []byte
	if treatAs == 0 {
		reduced = recvData[:count]
	} else {
		reduced = make([]byte, count)
	}
	copy(reduced, sendData[:count])

	if lc < w.size {
		tmp := make([]byte, count)
		if ret := w.Recv(tmp, count, lc, types.TagGroupBegin); ret != types.SUCCESS {
			return ret
		}
		applyOp(reduced, tmp, op)
		if rc < w.size {
			if ret := w.Recv(tmp, count, rc, types.TagGroupBegin); ret != types.SUCCESS {
				return ret
			}
			applyOp(reduced, tmp, op)
		}
	}

	if treatAs != 0 {
		w.Send(reduced, count, p, types.TagGroupBegin)
		if ret := w.Recv(nil, 0, p, types.TagGroupEnd); ret != types.SUCCESS {
			return ret
		}
	}
	if lc < w.size {
		w.Send(nil, 0, lc, types.TagGroupEnd)
		if rc < w.size {
			w.Send(nil, 0, rc, types.TagGroupEnd)
		}
	}

	return types.SUCCESS
}

// applyOp folds src elementwise into dest using op, byte-wise per spec
// section 6: MAX/MIN as unsigned comparisons, SUM/PROD wrapping modulo 256
// (implicit uint8 overflow), exactly as the original reduce_data does.
func applyOp(dest, src []byte, op types.Op) {
	for i := range dest {
		switch op {
		case types.OpMax:
			if src[i] > dest[i] {
				dest[i] = src[i]
			}
		case types.OpMin:
			if src[i] < dest[i] {
				dest[i] = src[i]
			}
		case types.OpSum:
			dest[i] = dest[i] + src[i]
		case types.OpProd:
			dest[i] = dest[i] * src[i]
		}
	}
}
