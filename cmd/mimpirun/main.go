// Command mimpirun launches N copies of a program wired together with the
// pipe mesh and environment contract spec section 6 defines, the same way
// mimpirun.c does: N*(N-1) unidirectional channels, one pair of read/write
// descriptors handed to each child per peer, and a rank/world-size pair in
// the environment. The original forks and dup2's fixed descriptor numbers
// starting at 20; this port uses os/exec's ExtraFiles instead; spec section
// 9 flags the fixed-fd assumption as an artifact of the original process
// model, not a contract children may rely on.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "mimpirun",
		Usage:     "launch a mimpi program across N worker processes",
		ArgsUsage: "N program [args...]",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mimpirun:", err)
		os.Exit(1)
	}
}

// link is the unidirectional pipe carrying messages from rank i to rank j.
type link struct {
	r, w *os.File
}

func run(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("usage: mimpirun N program [args...]")
	}

	n, err := strconv.Atoi(c.Args().Get(0))
	if err != nil || n <= 0 {
		return fmt.Errorf("N must be a positive integer, got %q", c.Args().Get(0))
	}
	program := c.Args().Get(1)
	programArgs := c.Args().Slice()[2:]

	runID := uuid.New().String()
	log := logrus.WithField("run_id", runID)

	links := make(map[[2]int]link, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			r, w, err := os.Pipe()
			if err != nil {
				closeAll(links)
				return fmt.Errorf("opening pipe %d->%d: %w", i, j, err)
			}
			links[[2]int{i, j}] = link{r: r, w: w}
		}
	}

	cmds := make([]*exec.Cmd, n)
	for rank := 0; rank < n; rank++ {
		cmd := exec.Command(program, programArgs...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(),
			"MIMPI_WORLD_VAR="+strconv.Itoa(n),
			"MIMPI_RANK_VAR="+strconv.Itoa(rank),
		)

		for p := 0; p < n; p++ {
			if p == rank {
				continue
			}
			readEnd := links[[2]int{p, rank}].r
			writeEnd := links[[2]int{rank, p}].w

			cmd.ExtraFiles = append(cmd.ExtraFiles, readEnd)
			readFD := 3 + len(cmd.ExtraFiles) - 1
			cmd.ExtraFiles = append(cmd.ExtraFiles, writeEnd)
			writeFD := 3 + len(cmd.ExtraFiles) - 1

			cmd.Env = append(cmd.Env,
				fmt.Sprintf("MIMPI_READ_PIPE_%d=%d", p, readFD),
				fmt.Sprintf("MIMPI_WRITE_PIPE_%d=%d", p, writeFD),
			)
		}

		if err := cmd.Start(); err != nil {
			closeAll(links)
			return fmt.Errorf("starting rank %d: %w", rank, err)
		}
		log.Infof("started rank %d (pid %d)", rank, cmd.Process.Pid)
		cmds[rank] = cmd
	}

	// The parent's copies of every pipe end are only needed to pass them
	// to the children via ExtraFiles; once every child has started, the
	// parent must close its own copies or children will never see EOF on
	// the read ends of peers that have exited.
	closeAll(links)

	var firstErr error
	for rank, cmd := range cmds {
		if err := cmd.Wait(); err != nil {
			log.Warnf("rank %d exited with error: %v", rank, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("rank %d: %w", rank, err)
			}
		}
	}
	return firstErr
}

func closeAll(links map[[2]int]link) {
	for _, l := range links {
		l.r.Close()
		l.w.Close()
	}
}
