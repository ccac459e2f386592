package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"blindtest/internal/archive"
	"blindtest/internal/config"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Package projects with their media",
	}
	archiveCmd.AddCommand(newArchiveCreateCommand(ctx))
	archiveCmd.AddCommand(newArchiveOpenCommand(ctx))
	return archiveCmd
}

func newArchiveCreateCommand(ctx *commandContext) *cobra.Command {
	var docPath string
	var outputPath string
	var compression string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an archive holding a project, its clips and the countdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			doc, err := config.ExpandPath(strings.TrimSpace(docPath))
			if err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = archive.DefaultArchivePath(doc)
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve archive path: %w", err)
			}
			mode := strings.ToLower(strings.TrimSpace(compression))
			if mode == "" {
				mode = cfg.Archive.Compression
			}

			summary, err := archive.Pack(cmd.Context(), doc, target, archive.Options{
				Compression: mode,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d clips (%d files, %s) to %s\n",
				summary.Clips, summary.Files, humanize.IBytes(uint64(summary.Bytes)), summary.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&docPath, "input", "i", "", "Project document to archive")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Archive path (defaults to the document name with "+archive.Extension+")")
	cmd.Flags().StringVar(&compression, "compression", "", "Compression: none or zstd (defaults to archive.compression)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newArchiveOpenCommand(ctx *commandContext) *cobra.Command {
	var archivePath string
	var destDir string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Extract an archive and rewrite its project to the extracted media",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			src, err := config.ExpandPath(strings.TrimSpace(archivePath))
			if err != nil {
				return fmt.Errorf("resolve archive path: %w", err)
			}
			dest, err := config.ExpandPath(strings.TrimSpace(destDir))
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}
			docPath, err := archive.Unpack(cmd.Context(), src, dest, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted project to %s\n", docPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&archivePath, "input", "i", "", "Archive to open")
	cmd.Flags().StringVarP(&destDir, "output", "o", archive.DefaultOpenDir, "Destination folder")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
