package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"media-ingest/internal/database"
	"media-ingest/internal/intake"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/queue"
	"media-ingest/internal/registry"
	"media-ingest/internal/startup"
	"media-ingest/internal/status"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second

	defaultListLimit = 50
)

// cli carries the stores and terminal streams of one invocation.
type cli struct {
	out    io.Writer
	errOut io.Writer
	in     io.Reader
	isTTY  bool
	now    func() time.Time

	queue  *queue.Queue
	items  *registry.Registry
	intake *intake.Service
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	// Keep library logging out of command output
	logging.SetLevel(logging.LevelError)

	// Optional, as in the service
	_ = godotenv.Load()

	config, err := startup.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := database.Options{Dialect: database.SQLite, Path: config.Database.Path, MaxOpenConns: 2}
	if config.Database.Driver == "postgres" {
		opts = database.Options{Dialect: database.Postgres, DSN: config.Database.DSN, MaxOpenConns: 2}
	}
	db, err := database.New(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure INGEST_DATA_DIR or INGEST_DATABASE_DSN is set correctly\n")
		os.Exit(1)
	}

	c := newCLI(db, os.Stdout, os.Stderr, os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	code := c.run(ctx, os.Args[1:])

	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
	os.Exit(code)
}

func newCLI(db *database.Database, out, errOut io.Writer, in io.Reader, isTTY bool) *cli {
	items := registry.New(db)
	q := queue.New(db, queue.DefaultConfig())
	// Rendition URLs are not shown by this tool, so keys are used as-is.
	pub := status.NewPublisher(items, func(key string) string { return key }, nil, "ingestctl")
	return &cli{
		out:    out,
		errOut: errOut,
		in:     in,
		isTTY:  isTTY,
		now:    time.Now,
		queue:  q,
		items:  items,
		intake: intake.New(intake.Config{}, db, items, q, nil, pub),
	}
}

// run executes one command and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printUsage(c.out)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var err error
	switch args[0] {
	case "dead-letters":
		err = c.listDeadLetters(ctx, args[1:])
	case "retry":
		err = c.retry(ctx, args[1:])
	case "purge":
		err = c.purge(ctx, args[1:])
	case "stats":
		err = c.stats(ctx)
	case "item":
		err = c.item(ctx, args[1:])
	case "help", "-h", "--help":
		printUsage(c.out)
		return 0
	default:
		fmt.Fprintf(c.errOut, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(c.errOut)
		return 1
	}

	if err != nil {
		fmt.Fprintf(c.errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Ingest Operator Tool")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: ingestctl <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  dead-letters [-limit N]  - List dead-lettered jobs, newest first")
	fmt.Fprintln(w, "  retry [-y] <job-id>      - Re-enqueue a dead-lettered job")
	fmt.Fprintln(w, "  purge [-y] <age>         - Delete dead letters older than age (e.g. 72h, 30d)")
	fmt.Fprintln(w, "  stats                    - Show queue depth and item counts")
	fmt.Fprintln(w, "  item <media-id>          - Show one media item and its renditions")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  INGEST_DATA_DIR, INGEST_DATABASE_DRIVER, INGEST_DATABASE_DSN")
}

func (c *cli) listDeadLetters(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dead-letters", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	limit := fs.Int("limit", defaultListLimit, "maximum number of dead letters to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dead, err := c.queue.ListDeadLetters(ctx, *limit)
	if err != nil {
		return err
	}
	if len(dead) == 0 {
		fmt.Fprintln(c.out, "No dead letters.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tMEDIA\tATTEMPTS\tCLASS\tDIED\tREASON")
	for _, dl := range dead {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			dl.JobID, dl.MediaID, dl.Attempts, dl.Class,
			dl.DeadAt.Local().Format(time.DateTime), truncate(dl.Reason, 60))
	}
	return tw.Flush()
}

func (c *cli) retry(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	yes := fs.Bool("y", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ingestctl retry [-y] <job-id>")
	}
	jobID := fs.Arg(0)

	dl, err := c.queue.GetDeadLetter(ctx, jobID)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("Retry job %s for media %s (%s: %s)?", dl.JobID, dl.MediaID, dl.Class, truncate(dl.Reason, 60))
	if ok, err := c.confirm(prompt, *yes); !ok {
		return err
	}

	job, err := c.intake.RetryDeadLetter(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Job %s re-enqueued for media %s.\n", job.ID, job.MediaID)
	return nil
}

func (c *cli) purge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	yes := fs.Bool("y", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ingestctl purge [-y] <age>")
	}

	age, err := parseAge(fs.Arg(0))
	if err != nil {
		return err
	}
	cutoff := c.now().Add(-age)

	if ok, err := c.confirm(fmt.Sprintf("Delete dead letters that died before %s?", cutoff.Local().Format(time.DateTime)), *yes); !ok {
		return err
	}

	n, err := c.queue.PurgeDeadLetters(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Purged %d dead letter(s).\n", n)
	return nil
}

func (c *cli) stats(ctx context.Context) error {
	qs, err := c.queue.Stats(ctx)
	if err != nil {
		return err
	}
	counts, err := c.items.Counts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\t")
	fmt.Fprintf(tw, "  queued\t%d\n", qs.Queued)
	fmt.Fprintf(tw, "  leased\t%d\n", qs.Leased)
	fmt.Fprintf(tw, "  expired\t%d\n", qs.Expired)
	fmt.Fprintf(tw, "  dead letters\t%d\n", qs.DeadLetters)
	fmt.Fprintln(tw, "ITEMS\t")
	for _, s := range []mediatypes.Status{mediatypes.StatusPending, mediatypes.StatusProcessing, mediatypes.StatusReady, mediatypes.StatusFailed} {
		fmt.Fprintf(tw, "  %s\t%d\n", strings.ToLower(string(s)), counts[s])
	}
	return tw.Flush()
}

func (c *cli) item(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: ingestctl item <media-id>")
	}

	item, err := c.items.Get(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", item.ID)
	fmt.Fprintf(tw, "Album\t%s\n", item.AlbumID)
	fmt.Fprintf(tw, "Filename\t%s\n", item.Filename)
	fmt.Fprintf(tw, "Status\t%s\n", item.Status)
	if item.Kind != "" {
		fmt.Fprintf(tw, "Kind\t%s (%s)\n", item.Kind, item.MimeType)
	}
	if item.Width > 0 {
		fmt.Fprintf(tw, "Dimensions\t%dx%d %s\n", item.Width, item.Height, item.Orientation)
	}
	if item.DurationSeconds > 0 {
		fmt.Fprintf(tw, "Duration\t%.1fs %s\n", item.DurationSeconds, item.VideoCodec)
	}
	if item.Checksum != "" {
		fmt.Fprintf(tw, "Checksum\t%s\n", item.Checksum)
	}
	if item.ProcessingError != "" {
		fmt.Fprintf(tw, "Error\t%s\n", item.ProcessingError)
	}
	fmt.Fprintf(tw, "Retries\t%d\n", item.RetryCount)
	fmt.Fprintf(tw, "Uploaded\t%s\n", item.UploadedAt.Local().Format(time.DateTime))

	kinds := make([]string, 0, len(item.Renditions))
	for k := range item.Renditions {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		r := item.Renditions[mediatypes.RenditionKind(k)]
		fmt.Fprintf(tw, "Rendition %s\t%s (%dx%d, %d bytes)\n", k, r.BlobKey, r.Width, r.Height, r.SizeBytes)
	}
	return tw.Flush()
}

// confirm asks for a y/N answer on a terminal. Without a terminal the
// caller must pass -y.
func (c *cli) confirm(prompt string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !c.isTTY {
		return false, errors.New("stdin is not a terminal; pass -y to confirm")
	}

	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(c.out, "Aborted.")
	return false, nil
}

// parseAge accepts Go durations plus a whole-day suffix ("30d").
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
