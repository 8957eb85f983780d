// Command qvm runs a demo machine: it registers a few device kinds,
// builds the initial tree from an optional config bundle, and serves
// the monitor on stdin and, optionally, an AF_VSOCK port. Commands
// from every source run on a single goroutine, which is the machine's
// serialising guard.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"github.com/mdlayher/vsock"
	"github.com/s7r/qdev"
	"github.com/s7r/qdev/monitor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

var errQuit = errors.New("quit")

// request is one command line waiting for the executor.
type request struct {
	mon  *monitor.Monitor
	line string
	done chan struct{}
}

func main() {
	var (
		bundlePath  = flag.String("bundle", "", "load a machine config bundle (cpio archive)")
		globalsPath = flag.String("globals", "", "load global property defaults from a YAML file")
		vsockPort   = flag.Uint("monitor-vsock", 0, "serve the monitor on an AF_VSOCK port")
	)

	flag.Parse()

	machine := qdev.New(qdev.Config{})
	registerKinds(machine)

	mon := monitor.New(monitor.Config{Machine: machine})

	if *globalsPath != "" {
		if err := loadFile(*globalsPath, mon.LoadGlobals); err != nil {
			fatal(err)
		}
	}

	if *bundlePath != "" {
		if err := loadFile(*bundlePath, mon.LoadBundle); err != nil {
			fatal(err)
		}
	}

	machine.CreationDone()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	reqC := make(chan request)

	// the executor: the only goroutine that touches the machine
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case req := <-reqC:
				req.mon.HandleLine(req.line)
				close(req.done)
			}
		}
	})

	g.Go(func() error {
		return serveREPL(ctx, reqC, mon)
	})

	if *vsockPort > 0 {
		l, err := vsock.Listen(uint32(*vsockPort), nil)
		if err != nil {
			fatal(err)
		}

		g.Go(func() error {
			<-ctx.Done()
			return l.Close()
		})

		g.Go(func() error {
			return serveListener(ctx, reqC, machine, l)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

// serveREPL feeds stdin lines to the executor, one at a time.
func serveREPL(ctx context.Context, reqC chan<- request, mon *monitor.Monitor) error {
	prompt := term.IsTerminal(int(os.Stdin.Fd()))
	sc := bufio.NewScanner(os.Stdin)

	for {
		if prompt {
			fmt.Print("(qvm) ")
		}

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}

			return errQuit
		}

		line := sc.Text()
		if line == "quit" || line == "q" {
			return errQuit
		}

		if err := submit(ctx, reqC, mon, line); err != nil {
			return err
		}
	}
}

// serveListener accepts monitor connections and feeds their lines to
// the executor. Each connection gets its own monitor so output goes
// back to the peer.
func serveListener(ctx context.Context, reqC chan<- request, machine *qdev.Machine, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		go func() {
			defer conn.Close()

			mon := monitor.New(monitor.Config{Machine: machine, Out: conn})

			sc := bufio.NewScanner(conn)
			for sc.Scan() {
				if err := submit(ctx, reqC, mon, sc.Text()); err != nil {
					return
				}
			}

			if err := sc.Err(); err != nil {
				slog.Warn("monitor connection failed", "err", err)
			}
		}()
	}
}

func submit(ctx context.Context, reqC chan<- request, mon *monitor.Monitor, line string) error {
	req := request{mon: mon, line: line, done: make(chan struct{})}

	select {
	case <-ctx.Done():
		return ctx.Err()

	case reqC <- req:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-req.done:
		return nil
	}
}

func loadFile(path string, load func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close()
	return load(f)
}

func fatal(err error) {
	slog.Error("qvm failed", "err", err)
	os.Exit(1)
}
