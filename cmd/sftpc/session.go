package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codemonument/sftpc/internal/output"
	"github.com/codemonument/sftpc/pkg/session"
)

// closeTimeout bounds how long a command waits for sftp to exit.
const closeTimeout = 10 * time.Second

var sessFlags sessionFlags

var (
	putDest     string
	putSessions int
)

var putCmd = &cobra.Command{
	Use:   "put <host> <file> [file ...]",
	Short: "Upload files",
	Long: `Upload local files, waiting for sftp to confirm each one.

With --sessions the files are spread over several sftp sessions that
upload concurrently.

Examples:
  sftpc put deploy@example.com report.csv --dest /upload
  sftpc put deploy@example.com build/*.tar.gz --sessions 4`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <host> <remote> [local]",
	Short: "Download a file",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := ""
		if len(args) == 3 {
			local = args[2]
		}
		return withSession(args[0], func(ctx context.Context, s *session.Session, out *output.Output) error {
			f, err := s.DownloadFile(args[1], local)
			if err != nil {
				return err
			}
			if _, err := f.Await(ctx); err != nil {
				return err
			}
			out.Println("downloaded " + args[1])
			return nil
		})
	},
}

var pwdCmd = &cobra.Command{
	Use:   "pwd <host>",
	Short: "Print the remote working directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(args[0], func(ctx context.Context, s *session.Session, out *output.Output) error {
			f, err := s.Pwd()
			if err != nil {
				return err
			}
			dir, err := f.Await(ctx)
			if err != nil {
				return err
			}
			out.Println(dir)
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <host> [path]",
	Short: "List a remote directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 2 {
			path = args[1]
		}
		return withSession(args[0], func(ctx context.Context, s *session.Session, out *output.Output) error {
			f, err := s.Ls(path)
			if err != nil {
				return err
			}
			lines, err := f.Await(ctx)
			if err != nil {
				return err
			}
			for _, line := range lines {
				out.Println(line)
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{putCmd, getCmd, pwdCmd, lsCmd} {
		cmd.Flags().AddFlagSet(sessFlags.flagSet())
	}

	putCmd.Flags().StringVar(&putDest, "dest", "", "Remote directory (default: remote working directory)")
	putCmd.Flags().IntVar(&putSessions, "sessions", 1, "Number of concurrent sftp sessions")
}

func runPut(cmd *cobra.Command, args []string) error {
	host, files := args[0], args[1:]

	n := putSessions
	if n < 1 {
		n = 1
	}
	if n > len(files) {
		n = len(files)
	}

	batches := make([][]string, n)
	for i, file := range files {
		batches[i%n] = append(batches[i%n], file)
	}

	ctx, cancel := signalContext()
	defer cancel()

	out := newOutput()
	g, ctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		label := sessFlags.label
		if n > 1 {
			label = fmt.Sprintf("put-%d", i+1)
		}
		g.Go(func() error {
			return runSession(ctx, host, label, out, func(ctx context.Context, s *session.Session, out *output.Output) error {
				done, err := s.UploadFiles(ctx, batch, putDest)
				for _, file := range batch[:len(done)] {
					out.Println("uploaded " + file)
				}
				return err
			})
		})
	}

	return g.Wait()
}

// withSession runs fn against a new session on host and closes it.
func withSession(host string, fn func(context.Context, *session.Session, *output.Output) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	return runSession(ctx, host, sessFlags.label, newOutput(), fn)
}

func runSession(ctx context.Context, host, label string, out *output.Output, fn func(context.Context, *session.Session, *output.Output) error) (err error) {
	log := newLogger()
	if log == nil {
		log = out
	}

	opts := sessFlags.options(log)
	if label != "" {
		opts = append(opts, session.WithLabel(label))
	}

	s, err := session.New(ctx, host, opts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := s.Close(closeCtx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := s.WaitConnected(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	return fn(ctx, s, out)
}
