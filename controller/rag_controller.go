package controller

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bootiful-ai/carina-rag/models"
	"github.com/bootiful-ai/carina-rag/services"
)

// RAGController maps the command line onto RAGService. Each command loads its
// configuration, builds the service and tears it down again.
type RAGController struct {
	configFile string
	log        *logrus.Entry
}

// NewRAGController is a constructor function that creates a new RAGController.
func NewRAGController() *RAGController {
	return &RAGController{log: logrus.WithField("component", "cli")}
}

// NewRootCommand assembles the carina-rag command tree.
func NewRootCommand() *cobra.Command {
	c := NewRAGController()

	root := &cobra.Command{
		Use:   "carina-rag",
		Short: "Answer questions about Carina's Medicaid caregiver FAQ",
		Long: `carina-rag ingests a PDF into a vector store and answers questions about it
with retrieval-augmented generation. The answer is written to a file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(c.ingestCommand(), c.askCommand(), c.runCommand(), c.configCommand())
	return root
}

func (c *RAGController) ingestCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replace the vector store contents with the chunks of a PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := services.ConfigurePDFLicense(cfg.PDF.LicenseKey); err != nil {
				return err
			}
			svc, closeFn, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := svc.Ingest(cmd.Context(), cfg.PDF.Path)
			if err != nil {
				return err
			}
			c.log.WithField("document_id", resp.DocumentID).
				Infof("Ingested %d chunks from %d pages", resp.Chunks, resp.Pages)

			if !watch {
				return nil
			}
			return services.NewFileIndexingService(svc).WatchFile(cmd.Context(), cfg.PDF.Path)
		},
	}
	cmd.Flags().String("pdf", "", "Path to the PDF to ingest")
	cmd.Flags().String("store", "", "Vector store backend (sqlite, chroma, pgvector)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and re-ingest whenever the PDF changes")
	return cmd
}

func (c *RAGController) askCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question from the stored chunks and write it to the output file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			svc, closeFn, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := svc.Run(cmd.Context(), models.RunRequest{
				Question:   questionFrom(args, cfg.Query.Question),
				TopK:       cfg.Query.TopK,
				OutputPath: cfg.Output.Path,
			})
			if err != nil {
				return err
			}
			c.log.Infof("Answer written to %s (%d sources)", cfg.Output.Path, len(resp.Sources))
			return nil
		},
	}
	cmd.Flags().String("output", "", "File the answer is written to")
	cmd.Flags().Int("top-k", 0, "Number of chunks to retrieve")
	cmd.Flags().String("store", "", "Vector store backend (sqlite, chroma, pgvector)")
	return cmd
}

func (c *RAGController) runCommand() *cobra.Command {
	var reindex bool
	cmd := &cobra.Command{
		Use:   "run [question]",
		Short: "Optionally re-ingest the PDF, then answer one question into the output file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			if reindex {
				if err := services.ConfigurePDFLicense(cfg.PDF.LicenseKey); err != nil {
					return err
				}
			}
			svc, closeFn, err := buildService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := svc.Run(cmd.Context(), models.RunRequest{
				PDFPath:    cfg.PDF.Path,
				Reindex:    reindex,
				Question:   questionFrom(args, cfg.Query.Question),
				TopK:       cfg.Query.TopK,
				OutputPath: cfg.Output.Path,
			})
			if err != nil {
				return err
			}
			c.log.Infof("Answer written to %s (%d sources)", cfg.Output.Path, len(resp.Sources))
			return nil
		},
	}
	cmd.Flags().String("pdf", "", "Path to the PDF to ingest")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Clear the store and ingest the PDF before asking")
	cmd.Flags().String("output", "", "File the answer is written to")
	cmd.Flags().Int("top-k", 0, "Number of chunks to retrieve")
	cmd.Flags().String("store", "", "Vector store backend (sqlite, chroma, pgvector)")
	return cmd
}

func (c *RAGController) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.View()
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	})
	return cmd
}

func questionFrom(args []string, fallback string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	if fallback != "" {
		return fallback
	}
	return services.DefaultQuestion
}
