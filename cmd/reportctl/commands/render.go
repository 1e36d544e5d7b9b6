package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"report_renderer/internal/di"
	"report_renderer/internal/export"
	"report_renderer/internal/render"
	"report_renderer/internal/service"
	"report_renderer/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	renderData     string
	renderFormat   string
	renderTemplate string
	renderOutput   string
	renderParams   map[string]string
	renderTimeout  time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a JSON record or array of records to a file",
	Long: `Render reads a JSON object (single record) or a JSON array (collection)
and writes the exported report. Templates are read from the configured store.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "JSON data file (required)")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", string(export.FormatPDF), "output format: pdf, docx or xlsx")
	renderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "template key (defaults to config)")
	renderCmd.Flags().StringVarP(&renderOutput, "out", "o", "", "output file (defaults to report.<ext>)")
	renderCmd.Flags().StringToStringVarP(&renderParams, "param", "p", nil, "template parameter, key=value")
	renderCmd.Flags().DurationVar(&renderTimeout, "timeout", time.Minute, "render timeout")
	renderCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
	defer cancel()

	cfg, logger, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(renderData)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	store, err := storage.NewStorageFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("open template store: %w", err)
	}
	defer storage.Close(store)

	renderer := service.NewRenderer(di.NewCache(cfg, store, logger), nil, di.NewOptions(cfg), logger)

	req := service.Request{
		Format:   export.Format(renderFormat),
		Template: renderTemplate,
		Params:   make(render.Params, len(renderParams)),
	}
	for k, v := range renderParams {
		req.Params[k] = v
	}

	ctx = service.WithRequestID(ctx, uuid.NewString())

	var res *export.Result
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var records []any
		if err := decodeJSON(raw, &records); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
		res, err = renderer.RenderCollection(ctx, records, req)
	} else {
		var record any
		if err := decodeJSON(raw, &record); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
		res, err = renderer.RenderSingle(ctx, record, req)
	}
	if err != nil {
		return err
	}

	out := renderOutput
	if out == "" {
		out = "report." + res.Extension
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", out, len(res.Data))
	return nil
}

// decodeJSON сохраняет числа без потери точности
func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
