package mimpi

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tanshoo/mimpi/pkg/mimpi/core"
	"github.com/tanshoo/mimpi/pkg/mimpi/types"
)

// Environment contract between mimpirun and a worker process, per spec
// section 6.
const (
	worldVar = "MIMPI_WORLD_VAR"
	rankVar  = "MIMPI_RANK_VAR"
)

func readPipeVar(peer int) string  { return fmt.Sprintf("MIMPI_READ_PIPE_%d", peer) }
func writePipeVar(peer int) string { return fmt.Sprintf("MIMPI_WRITE_PIPE_%d", peer) }

// readEnvironment parses the mimpirun environment contract into a
// WorldConfig and the set of peer pipes, opening each descriptor as an
// *os.File. It deliberately does not bake in a starting file-descriptor
// number the way the original source's launcher does (spec section 9);
// the descriptor values themselves come entirely from the environment.
func readEnvironment() (types.WorldConfig, map[int]core.PeerPipes, error) {
	size, err := readIntVar(worldVar)
	if err != nil {
		return types.WorldConfig{}, nil, err
	}
	rank, err := readIntVar(rankVar)
	if err != nil {
		return types.WorldConfig{}, nil, err
	}
	if rank < 0 || rank >= size {
		return types.WorldConfig{}, nil, fmt.Errorf("mimpi: %s=%d out of range [0,%d)", rankVar, rank, size)
	}

	peers := make(map[int]core.PeerPipes, size-1)
	for p := 0; p < size; p++ {
		if p == rank {
			continue
		}
		readFD, err := readIntVar(readPipeVar(p))
		if err != nil {
			return types.WorldConfig{}, nil, err
		}
		writeFD, err := readIntVar(writePipeVar(p))
		if err != nil {
			return types.WorldConfig{}, nil, err
		}
		peers[p] = core.PeerPipes{
			Read:  os.NewFile(uintptr(readFD), fmt.Sprintf("mimpi-read-%d", p)),
			Write: os.NewFile(uintptr(writeFD), fmt.Sprintf("mimpi-write-%d", p)),
		}
	}

	cfg := types.WorldConfig{Size: size, Rank: rank}
	return cfg, peers, nil
}

// clearEnvironment unsets every environment variable readEnvironment
// consumed, per spec section 4.6 step 5.
func clearEnvironment(size, rank int) {
	for p := 0; p < size; p++ {
		if p == rank {
			continue
		}
		os.Unsetenv(readPipeVar(p))
		os.Unsetenv(writePipeVar(p))
	}
	os.Unsetenv(rankVar)
	os.Unsetenv(worldVar)
}

func readIntVar(name string) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, fmt.Errorf("mimpi: required environment variable %s is not set", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("mimpi: environment variable %s=%q is not an integer: %w", name, raw, err)
	}
	return v, nil
}
