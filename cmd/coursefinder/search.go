package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/user"
	"strings"

	"github.com/FranksOps/coursefinder/internal/app"
	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/FranksOps/coursefinder/internal/progress"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	platform string
	cap      int
	user     string
	page     int
	json     bool
	quiet    bool
}

func newSearchCmd(c *cli) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <course description>",
		Short: "Run one search and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(true); err != nil {
				return err
			}
			return runSearch(cmd.Context(), c, opts, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "restrict to one host, e.g. mega.nz")
	cmd.Flags().IntVarP(&opts.cap, "cap", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", defaultUser(), "requester identity used for rate limiting")
	cmd.Flags().IntVar(&opts.page, "page", 0, "zero-based page of results to print")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result page as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}

func runSearch(ctx context.Context, c *cli, opts *searchOptions, text string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var rep *progress.Reporter
	if !opts.quiet {
		rep = a.Reporter(ctx, func(_ context.Context, msg string) error {
			_, err := fmt.Fprintln(stderr, msg)
			return err
		})
	}

	rs, err := a.Pipeline.Search(ctx, pipeline.Request{
		Query:    text,
		Platform: opts.platform,
		Cap:      opts.cap,
		UserKey:  opts.user,
	}, rep)
	rep.Stop()
	<-rep.Done()

	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrValidation):
			return fmt.Errorf("please describe the course with letters or numbers: %w", err)
		case errors.Is(err, pipeline.ErrRateLimited):
			return fmt.Errorf("too many searches, try again in %s: %w", c.cfg.RateLimit.Window, err)
		default:
			return err
		}
	}

	if opts.page > 0 && !rs.SetPage(opts.page) {
		return fmt.Errorf("page %d out of range (%d pages)", opts.page, rs.PageCount())
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}
	return render(stdout, text, rs)
}

func render(w io.Writer, text string, rs *pipeline.ResultSet) error {
	if rs.Len() == 0 {
		_, err := fmt.Fprintf(w, "No results found for %q.\n", text)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q (page %d/%d)\n\n", text, rs.Page+1, rs.PageCount())
	offset := rs.Page * pageSize(rs)
	for i, r := range rs.Items() {
		fmt.Fprintf(&b, "%d. %s %s\n", offset+i+1, r.Glyph, r.DisplayTitle)
		fmt.Fprintf(&b, "   %s | score %d/10 | %s\n", r.Platform, r.Score, r.SizeBucket)
		fmt.Fprintf(&b, "   %s\n", r.Link)
	}
	if more := rs.More(); more > 0 {
		fmt.Fprintf(&b, "\n%d more available.\n", more)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func pageSize(rs *pipeline.ResultSet) int {
	if rs.PageSize > 0 {
		return rs.PageSize
	}
	return pipeline.DefaultPageSize
}
