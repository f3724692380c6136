package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yungbote/freightquote-backend/internal/app"
	domset "github.com/yungbote/freightquote-backend/internal/domain/settlement"
	"github.com/yungbote/freightquote-backend/internal/platform/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*l = append(*l, v)
	return nil
}

// Moves failed settlement events back to pending so the dispatcher retries
// them with a fresh attempt budget.
func main() {
	var events idList
	var dryRun bool
	var limit int
	flag.Var(&events, "event", "settlement event id to requeue (repeatable)")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned requeues without writing")
	flag.IntVar(&limit, "limit", 0, "limit number of failed events processed")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: ctx}
	repo := application.Repos.Settlements

	ids := []string(events)
	if len(ids) == 0 {
		failed, err := repo.ListByStatus(dbc, domset.StatusFailed, limit)
		if err != nil {
			fmt.Printf("list failed events: %v\n", err)
			os.Exit(1)
		}
		for _, ev := range failed {
			ids = append(ids, ev.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Println("no failed settlement events")
		return
	}

	requeued := 0
	now := time.Now().UTC()
	for _, id := range ids {
		if dryRun {
			fmt.Printf("[dry-run] requeue settlement event %s\n", id)
			continue
		}
		ok, err := repo.Requeue(dbc, id, now)
		if err != nil {
			fmt.Printf("requeue %s: %v\n", id, err)
			continue
		}
		if !ok {
			fmt.Printf("skip %s: not in %s\n", id, domset.StatusFailed)
			continue
		}
		requeued++
	}
	fmt.Printf("done. requeued=%d\n", requeued)
}
