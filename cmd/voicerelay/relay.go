package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"voice-relay/internal/infra/local"
)

func newRelayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay <clip>",
		Short: "Answer a single audio file and write the reply to the outbox",
		Long: `Run the relay once against an audio file on disk.

The voice reply is written to <outbox>/<id>_reply.ogg; notices and errors
go to <outbox>/<id>_reply.txt.

Examples:
  voicerelay relay question.ogg
  voicerelay relay --outbox ./replies memo.m4a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Platform.Kind = "local"
			cfg.Platform.Local.Source = "inbox"
			if outbox, _ := cmd.Flags().GetString("outbox"); outbox != "" {
				cfg.Platform.Local.OutboxDir = outbox
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := setupLogger(cfg.Log)
			ctx := cmd.Context()

			deps, err := buildDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			platform := local.New(local.Config{
				InboxDir:  cfg.Platform.Local.InboxDir,
				OutboxDir: cfg.Platform.Local.OutboxDir,
			}, logger)
			if err := platform.Start(ctx); err != nil {
				return err
			}
			defer platform.Stop()

			clip, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving clip path: %w", err)
			}
			msg := local.MessageFromFile(clip)

			outcome := deps.relay(platform, cfg, logger).Handle(ctx, msg)

			out := cmd.OutOrStdout()
			if outcome.Transcript != "" {
				fmt.Fprintf(out, "transcript: %s\n", outcome.Transcript)
			}
			if outcome.Reply != "" {
				fmt.Fprintf(out, "reply: %s\n", outcome.Reply)
			}
			if outcome.Fault != "" {
				fmt.Fprintf(out, "notice: %s\n", platform.ReplyPath(msg, ".txt"))
				return fmt.Errorf("relay failed: %s", outcome.Status())
			}
			fmt.Fprintf(out, "voice: %s\n", platform.ReplyPath(msg, ".ogg"))
			return nil
		},
	}

	cmd.Flags().String("outbox", "", "directory for the reply (defaults to platform.local.outbox_dir)")

	return cmd
}
