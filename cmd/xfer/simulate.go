package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/xfer/internal/config"
	"go.klb.dev/xfer/internal/dnd"
	"go.klb.dev/xfer/internal/dragsource"
	"go.klb.dev/xfer/internal/droptarget"
	"go.klb.dev/xfer/internal/loop"
	"go.klb.dev/xfer/internal/platform"
	"go.klb.dev/xfer/internal/registry"
	"go.klb.dev/xfer/internal/transfer"
)

const (
	sourceHandle platform.Handle = 1
	targetHandle platform.Handle = 2
	rowHeight                    = 20

	// outside names the empty space around the target in --path.
	outside = "-"
)

var (
	errDragUnfinished = errors.New("drag did not finish")
	errEmptyPath      = errors.New("empty path")
)

func newSimulateCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "simulate-drag",
		Short: "Run a scripted drag session against an in-memory list",
		Long: `Drags --text from an in-process source onto a list target and prints
every event both sides see, on a virtual clock.

--path is a comma separated list of row:duration steps. The pointer rests
over each row for its duration before moving on; "-" is the space outside
the list. After the last step the pointer is released, or the drag is
cancelled with --cancel.

  xfer simulate-drag --rows inbox,archive,trash --path inbox:100ms,trash:1.2s --operation move

Rows scroll after --scroll-hysteresis and expand after --expand-hysteresis
of continuous hovering.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runSimulate(cmd.OutOrStdout(), v) },
	}

	d := config.Default()
	f := cmd.Flags()
	f.String("text", "hello", "payload dragged from the source")
	f.StringSlice("rows", []string{"first", "second", "third"}, "rows of the target list")
	f.String("path", "first:200ms,second:1.2s", "pointer path as row:duration steps")
	f.String("operation", "move", "operation the pointer suggests: copy|move|link")
	f.String("source-ops", "copy|move", "operations the source allows")
	f.String("target-ops", "copy|move|link", "operations the target allows")
	f.Bool("cancel", false, "cancel the drag instead of dropping")
	f.Bool("show-over", false, "print every drag-over heartbeat")
	f.String(config.KeyMode, d.Mode.String(), "in-memory negotiation mode: direct|stream")
	f.Duration(config.KeyHoverInterval, d.HoverInterval, "drag-over heartbeat period")
	f.Duration(config.KeyScrollHysteresis, d.ScrollHysteresis, "hover time before a row scrolls")
	f.Duration(config.KeyExpandHysteresis, d.ExpandHysteresis, "hover time before a row expands")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

type step struct {
	row  string
	rest time.Duration
}

func parsePath(path string, rows []string) ([]step, error) {
	var out []step
	for _, part := range strings.Split(path, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		row, dur, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("path step %q: want row:duration", part)
		}
		if row != outside && !slices.Contains(rows, row) {
			return nil, fmt.Errorf("path step %q: no row %q", part, row)
		}
		rest, err := time.ParseDuration(dur)
		if err != nil || rest < 0 {
			return nil, fmt.Errorf("path step %q: bad duration %q", part, dur)
		}
		out = append(out, step{row: row, rest: rest})
	}
	if len(out) == 0 {
		return nil, errEmptyPath
	}
	return out, nil
}

func parseOps(v *viper.Viper, key string) (dnd.Operation, error) {
	op, ok := dnd.ParseOperation(v.GetString(key))
	if !ok {
		return dnd.None, fmt.Errorf("%s: unknown operation %q", key, v.GetString(key))
	}
	return op, nil
}

// trace prints events against the virtual clock.
type trace struct {
	out   io.Writer
	clock loop.Scheduler
	start time.Time
	reg   *registry.Registry
}

func (tr *trace) printf(what, format string, args ...any) {
	at := tr.clock.Now().Sub(tr.start)
	fmt.Fprintf(tr.out, "%8s  %-18s %s\n", "+"+at.String(), what, fmt.Sprintf(format, args...))
}

func (tr *trace) event(what string, e *dnd.Event) {
	name, _ := tr.reg.Name(e.DataType)
	if name == "" {
		name = "-"
	}
	item := "-"
	if e.Item != nil {
		item = fmt.Sprint(e.Item)
	}
	tr.printf(what, "row=%s type=%s op=%s allowed=%s", item, name, e.Detail, e.Operations)
}

func (tr *trace) effect(what string) func(string) {
	return func(row string) { tr.printf(what, "row=%s", row) }
}

func runSimulate(out io.Writer, v *viper.Viper) error {
	s, err := config.FromViper(v)
	if err != nil {
		return err
	}
	rows := v.GetStringSlice("rows")
	steps, err := parsePath(v.GetString("path"), rows)
	if err != nil {
		return err
	}
	suggest, err := parseOps(v, "operation")
	if err != nil {
		return err
	}
	srcOps, err := parseOps(v, "source-ops")
	if err != nil {
		return err
	}
	tgtOps, err := parseOps(v, "target-ops")
	if err != nil {
		return err
	}

	reg := registry.New(nil)
	m := loop.NewManual(time.Unix(0, 0))
	disp := newMemory(s, reg)
	c := disp.Connect(m)
	defer func() { _ = c.Close() }()
	text := transfer.NewText(reg)
	tr := &trace{out: out, clock: m, start: m.Now(), reg: reg}

	src, err := dragsource.New(m, c, sourceHandle, srcOps)
	if err != nil {
		return err
	}
	defer src.Dispose()
	if err := src.SetCodecs(text); err != nil {
		return err
	}
	payload := v.GetString("text")
	src.AddListener(dragsource.Funcs{
		Start:    func(*dnd.Event) { tr.printf("source start", "ops=%s", src.Operations()) },
		SetData:  func(e *dnd.Event) { e.Data = payload; tr.event("source set-data", e) },
		Finished: func(e *dnd.Event) { tr.printf("source finished", "op=%s", e.Detail) },
	})

	effect := &droptarget.ListEffect{
		Rows:      rows,
		RowHeight: rowHeight,
		OnScroll:  tr.effect("scroll"),
		OnExpand:  tr.effect("expand"),
	}
	tgt, err := droptarget.New(m, c, targetHandle, tgtOps,
		droptarget.WithTiming(s.Timing()), droptarget.WithEffect(effect))
	if err != nil {
		return err
	}
	defer tgt.Dispose()
	if err := tgt.SetCodecs(text); err != nil {
		return err
	}
	hovering := func(e *dnd.Event) { e.Feedback = dnd.FeedbackScroll | dnd.FeedbackExpand }
	showOver := v.GetBool("show-over")
	tgt.AddListener(droptarget.Funcs{
		Enter: func(e *dnd.Event) { hovering(e); tr.event("enter", e) },
		Over: func(e *dnd.Event) {
			hovering(e)
			if showOver {
				tr.event("over", e)
			}
		},
		OperationChanged: func(e *dnd.Event) { hovering(e); tr.event("operation-changed", e) },
		Leave:            func(*dnd.Event) { tr.printf("leave", "") },
		Accept:           func(e *dnd.Event) { tr.event("drop-accept", e) },
		Dropped: func(e *dnd.Event) {
			tr.event("drop", e)
			if e.Data != nil {
				tr.printf("received", "%q", e.Data)
			}
		},
	})

	ok, err := src.Begin(0, 0)
	if err != nil {
		return err
	}
	m.Drain()
	if !ok {
		tr.printf("vetoed", "")
		return nil
	}
	g, ok := disp.ActiveDrag()
	if !ok {
		return errDragUnfinished
	}
	g.Suggest(suggest)

	for _, st := range steps {
		if st.row == outside {
			g.Move(0, 0, 0)
		} else {
			g.Move(targetHandle, 10, slices.Index(rows, st.row)*rowHeight+rowHeight/2)
		}
		m.Drain()
		m.Advance(st.rest)
	}
	if v.GetBool("cancel") {
		g.Cancel()
	} else {
		g.Drop()
	}
	if !m.RunUntil(g.Done(), time.Second) {
		return errDragUnfinished
	}
	tr.printf("result", "platform=%s state=%s/%s", g.Result(), src.State(), tgt.State())
	return nil
}
