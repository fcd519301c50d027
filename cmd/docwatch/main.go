package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kmrl/dochub/internal/app"
	"github.com/kmrl/dochub/internal/client"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/poller"
	"github.com/kmrl/dochub/internal/utils"
)

func main() {
	var (
		follow  = flag.Bool("follow", false, "keep watching after every job has settled")
		baseURL = flag.String("url", "", "server base URL (defaults to DOCHUB_URL)")
	)
	flag.Parse()

	logger := app.NewJSONLogger(os.Stderr, app.LevelFromEnv())
	cfg := common.LoadConfig()
	if *baseURL == "" {
		*baseURL = cfg.Client.BaseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*baseURL, cfg.Client.Timeout, logger)

	if flag.NArg() > 0 {
		res, err := c.Upload(ctx, flag.Args()...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(res.Message)
	}

	settled := make(chan struct{})
	var once sync.Once
	printer := newPrinter()

	p := poller.New(c, cfg.Client.PollInterval, logger,
		poller.WithObserver(func(snapshot []jobs.Job, state poller.State) {
			printer.print(snapshot)
			if state == poller.Idle && !*follow {
				once.Do(func() { close(settled) })
			}
		}),
	)
	p.Start(ctx)
	defer p.Close()

	if *follow {
		// the poller only ticks while work is in flight; pick up new uploads from others
		go func() {
			t := time.NewTicker(cfg.Client.PollInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if p.State() == poller.Idle {
						p.Refresh(ctx)
					}
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-settled:
	}
}

// printer writes a line whenever a job is new or its status changed.
type printer struct {
	mu   sync.Mutex
	seen map[string]string
}

func newPrinter() *printer {
	return &printer{seen: map[string]string{}}
}

func (p *printer) print(snapshot []jobs.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, j := range snapshot {
		if p.seen[j.ID] == string(j.Status) {
			continue
		}
		p.seen[j.ID] = string(j.Status)

		line := fmt.Sprintf("%s  %-10s  %s  %s", j.Timestamp, j.Status, j.ID, j.Filename)
		if j.DepartmentSuggestion != nil {
			line += fmt.Sprintf("  [%s %.2f]", j.DepartmentSuggestion.Department, j.DepartmentSuggestion.Confidence)
		}
		if s := strings.TrimSpace(utils.StrOrEmpty(j.Summary)); s != "" {
			line += "\n    " + s
		}
		fmt.Println(line)
	}
}
