package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/arcadia/internal/app"
	"github.com/Adda-Baaj/arcadia/internal/config"
	"github.com/Adda-Baaj/arcadia/internal/logger"
	"github.com/Adda-Baaj/arcadia/pkg/arcadia"
)

// session holds what every subcommand needs once config is loaded. Each
// subcommand closes it when done.
type session struct {
	cfg    *config.Config
	log    logger.Logger
	client *arcadia.Client
}

func (s *session) close() {
	if s.client != nil {
		_ = s.client.Close()
	}
	_ = logger.Close()
}

func newRootCommand() *cobra.Command {
	sess := &session{}
	var token string

	root := &cobra.Command{
		Use:           "arcadia",
		Short:         "Render images through the arcadia API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if token != "" {
				cfg.Token = token
			}
			log, err := logger.InitWriter(cfg, os.Stderr)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			sess.cfg = cfg
			sess.log = log
			sess.client = app.NewClient(cfg, log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&token, "token", "", "API token (overrides ARCADIA_TOKEN)")

	root.AddCommand(newFetchCommand(sess), newEndpointsCommand(sess))
	return root
}

func newFetchCommand(sess *session) *cobra.Command {
	var (
		endpoint  string
		imageURL  string
		secondURL string
		text      string
		variant   int
		params    map[string]string
		output    string
		timeout   int
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Render one image and write it to disk",
		Example: `  arcadia fetch -e wanted --url https://cdn.example/avatar.png
  arcadia fetch -e tweet --text "hello" --param username=gopher -o tweet
  arcadia fetch -e ship --url https://a/1.png --second-url https://a/2.png --variant 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer sess.close()

			opts := []arcadia.RequestOption{
				arcadia.WithURL(imageURL),
				arcadia.WithSecondURL(secondURL),
				arcadia.WithText(text),
				arcadia.WithVariant(variant),
			}
			if timeout > 0 {
				opts = append(opts, arcadia.WithRequestTimeout(time.Duration(timeout)*time.Second))
			}
			for k, v := range params {
				opts = append(opts, arcadia.WithParam(k, v))
			}

			res, err := sess.client.FetchImage(cmd.Context(), arcadia.NewImageRequest(endpoint, opts...))
			if err != nil {
				return describeFetchError(endpoint, err)
			}

			path := res.Filename(output)
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := os.WriteFile(path, res.Data, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Image endpoint to call")
	cmd.Flags().StringVar(&imageURL, "url", "", "Primary image URL")
	cmd.Flags().StringVar(&secondURL, "second-url", "", "Secondary image URL")
	cmd.Flags().StringVar(&text, "text", "", "Text parameter")
	cmd.Flags().IntVar(&variant, "variant", 0, "Endpoint variant (0 uses the default)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Extra query parameter key=value (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "image", "Output path without extension")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Request timeout in seconds (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("endpoint")

	return cmd
}

func describeFetchError(endpoint string, err error) error {
	var nf *arcadia.NotFoundError
	switch {
	case errors.Is(err, arcadia.ErrInvalidEndpoint):
		return fmt.Errorf("unknown endpoint %q (see `arcadia endpoints`): %w", endpoint, err)
	case errors.Is(err, arcadia.ErrForbidden):
		return fmt.Errorf("token rejected: %w", err)
	case errors.As(err, &nf):
		return fmt.Errorf("endpoint %q answered %d: %w", endpoint, nf.StatusCode, err)
	default:
		return err
	}
}

func newEndpointsCommand(sess *session) *cobra.Command {
	var timeout int

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints advertised by the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer sess.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeout)*time.Second)
			defer cancel()

			if err := sess.client.Catalog().Wait(ctx); err != nil {
				return fmt.Errorf("catalog not loaded after %ds: %w", timeout, err)
			}
			for _, name := range sess.client.Endpoints() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&timeout, "timeout", 30, "Seconds to wait for the catalog")

	return cmd
}
