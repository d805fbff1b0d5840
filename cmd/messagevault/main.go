// Command messagevault appends to and reads from a local file-backed
// vault. It is a thin shell around the engine, mainly useful for
// inspection and smoke testing; services embed the engine directly.
//
// Usage:
//
//	messagevault append --dir DIR --contract NAME [payload...]
//	messagevault read --dir DIR [--from N] [--count N]
//	messagevault tail --dir DIR [--from N]
//	messagevault position --dir DIR
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/perokvist/messagevault/internal/checkpoint"
	"github.com/perokvist/messagevault/internal/observability"
	"github.com/perokvist/messagevault/internal/pagestore"
	"github.com/perokvist/messagevault/internal/vault"
	"github.com/perokvist/messagevault/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// config holds the tunables of a local vault. All fields are optional.
type config struct {
	Dir           string `yaml:"dir"`
	PageSize      int64  `yaml:"pageSize"`
	MaxCommitSize int64  `yaml:"maxCommitSize"`
	ReadBuffer    int    `yaml:"readBuffer"`
}

type cli struct {
	configPath string
	dir        string
	verbose    bool

	cfg    config
	logger *observability.CoreLogger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "messagevault",
		Short:         "Append-only message log over page-aligned storage",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "",
		"path to a YAML config file")
	root.PersistentFlags().StringVar(&c.dir, "dir", ".",
		"vault directory holding stream.dat and stream.chk")
	root.PersistentFlags().BoolVar(&c.verbose, "verbose", false,
		"log at debug level")

	root.AddCommand(
		newAppendCmd(c),
		newReadCmd(c),
		newTailCmd(c),
		newPositionCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	if c.configPath != "" {
		raw, err := os.ReadFile(c.configPath)
		if err != nil {
			return fmt.Errorf("error reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c.cfg); err != nil {
			return fmt.Errorf("error parsing config: %w", err)
		}
	}
	if c.cfg.Dir == "" {
		c.cfg.Dir = c.dir
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		nil,
	)
	return nil
}

// open builds the file-backed store and checkpoint for the vault
// directory.
func (c *cli) open() (*pagestore.FileStore, *checkpoint.FileCheckpoint, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(c.cfg.Dir, 0o777); err != nil {
		return nil, nil, fmt.Errorf("error creating vault directory: %w", err)
	}

	store, err := pagestore.NewFileStore(
		fs,
		filepath.Join(c.cfg.Dir, vault.DataBlobName),
		pagestore.FileStoreOptions{
			PageSize:      c.cfg.PageSize,
			MaxCommitSize: c.cfg.MaxCommitSize,
		})
	if err != nil {
		return nil, nil, err
	}

	check := checkpoint.NewFileCheckpoint(
		fs, filepath.Join(c.cfg.Dir, vault.CheckpointBlobName))
	return store, check, nil
}

func newAppendCmd(c *cli) *cobra.Command {
	var contract string

	cmd := &cobra.Command{
		Use:   "append [payload...]",
		Short: "Append one message per payload argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, check, err := c.open()
			if err != nil {
				return err
			}

			writer, err := vault.OpenWriter(cmd.Context(), store, check,
				vault.WriterOptions{Logger: c.logger})
			if err != nil {
				return err
			}
			defer func() { _ = writer.Close() }()

			msgs := make([]vault.Incoming, 0, len(args))
			for _, payload := range args {
				msgs = append(msgs, vault.Incoming{
					Contract: contract,
					Payload:  []byte(payload),
				})
			}

			length, err := writer.Append(cmd.Context(), msgs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed length: %d\n", length)
			return nil
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "contract of the appended messages")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}

func newReadCmd(c *cli) *cobra.Command {
	var from int64
	var count int

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read committed messages from an offset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := c.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			length, err := reader.Position(cmd.Context())
			if err != nil {
				return err
			}

			msgs, next, err := reader.Read(cmd.Context(), from, length, count)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q\n", m.ID, m.Contract, m.Payload)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "next position: %d\n", next)
			return nil
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "logical offset to read from")
	cmd.Flags().IntVar(&count, "count", 100, "maximum messages to read")
	return cmd
}

func newTailCmd(c *cli) *cobra.Command {
	var from int64
	var queueLimit int

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the vault live, printing new messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := c.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bufferSize := c.cfg.ReadBuffer
			if bufferSize == 0 {
				bufferSize = vault.DefaultReadBufferSize
			}
			sub := reader.Subscribe(ctx, from, bufferSize, queueLimit)
			for m := range sub.Messages() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q\n", m.ID, m.Contract, m.Payload)
			}
			return sub.Wait()
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "logical offset to tail from")
	cmd.Flags().IntVar(&queueLimit, "queue", 64, "bound on undelivered messages")
	return cmd
}

func newPositionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "position",
		Short: "Print the committed logical length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := c.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			length, err := reader.Position(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), length)
			return nil
		},
	}
}

func (c *cli) openReader(cmd *cobra.Command) (*vault.Reader, error) {
	store, check, err := c.open()
	if err != nil {
		return nil, err
	}
	return vault.OpenReader(cmd.Context(), store, check, vault.ReaderOptions{
		Logger:     c.logger,
		BufferSize: c.cfg.ReadBuffer,
	})
}
