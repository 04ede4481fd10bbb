package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-decoder/internal/queue"
	"github.com/ironsheep/ocr-decoder/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Run the MCP server. Requests are read from stdin, one JSON-RPC request per
line, and responses are written to stdout. Configure it in your MCP client;
logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rec, err := a.newRecognizer(ctx)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"version": Version, "built": BuildTime, "commit": GitCommit}).Info("MCP server starting")
			srv := server.New(rec,
				server.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
				server.WithVersion(Version),
				server.WithLogger(a.log),
			)
			return srv.Run(ctx)
		},
	}
}

func newEnqueueCmd(a *app) *cobra.Command {
	var document string
	cmd := &cobra.Command{
		Use:   "enqueue [name=]page.png[,page2.png] ...",
		Short: "Queue documents for decoding by workers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, docs, err := parseDocuments(args, document)
			if err != nil {
				return err
			}
			qc := a.cfg.Queue
			enq, err := queue.NewEnqueuer(qc.RedisURL, qc.Name, qc.TaskTimeout)
			if err != nil {
				return err
			}
			a.onClose(enq)

			runID, ids, err := enq.Enqueue(cmd.Context(), docs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", runID)
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			a.log.WithFields(logrus.Fields{"run": runID, "tasks": len(ids), "queue": qc.Name}).Info("documents queued")
			return nil
		},
	}
	cmd.Flags().StringVarP(&document, "document", "d", "", "name of the document holding plain page arguments")
	return cmd
}

func newWorkerCmd(a *app) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Decode queued documents until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rec, err := a.newRecognizer(ctx)
			if err != nil {
				return err
			}
			qc := a.cfg.Queue
			if cmd.Flags().Changed("concurrency") {
				qc.Concurrency = concurrency
			}
			w, err := queue.NewWorker(queue.WorkerConfig{
				RedisURL:    qc.RedisURL,
				Queue:       qc.Name,
				Concurrency: qc.Concurrency,
			}, rec, a.log)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "documents decoded at once (default from configuration)")
	return cmd
}
