// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/pool"
	"github.com/ingressfs/passbot/app/z"
)

// failureReply is the uniform reply for malformed, unknown and unauthorized
// commands. Authorization failures deliberately get the same reply as unknown
// commands so the reason is not leaked.
const failureReply = "command failed"

const helpReply = `passcode bot commands:
/passcode help
/passcode report <portal> [label] <symbol>
/passcode status
admin only:
/passcode image <url>
/passcode patt <pattern>  (@=letter #=digit $=keyword)
/passcode trust <handle>
/passcode trusted
/passcode broadcast`

// call carries a parsed command invocation to its handler.
type call struct {
	reporter Reporter
	args     []string
}

// handlerFunc executes one subcommand and returns the reply text.
type handlerFunc func(ctx context.Context, c call) (string, error)

// command is one entry of the dispatch table.
type command struct {
	minArgs   int
	maxArgs   int
	adminOnly bool
	handle    handlerFunc
}

// Router parses inbound text commands, enforces authorization and dispatches
// to the matching handler. Replies and scheduled side effects execute on the
// worker pool, outside any store critical section.
type Router struct {
	store   *Store
	msgr    Messenger
	sched   *Scheduler
	bcaster *Broadcaster
	pool    *pool.Pool

	keyword  string
	adminID  ReporterID
	commands map[string]command
}

// NewRouter returns a new command router with a validated dispatch table.
func NewRouter(store *Store, msgr Messenger, sched *Scheduler, bcaster *Broadcaster,
	p *pool.Pool, keyword string, adminID ReporterID,
) (*Router, error) {
	r := &Router{
		store:   store,
		msgr:    msgr,
		sched:   sched,
		bcaster: bcaster,
		pool:    p,
		keyword: keyword,
		adminID: adminID,
	}

	r.commands = map[string]command{
		"help":      {minArgs: 0, maxArgs: 0, handle: r.handleHelp},
		"report":    {minArgs: 2, maxArgs: 3, handle: r.handleReport},
		"status":    {minArgs: 0, maxArgs: 0, handle: r.handleStatus},
		"image":     {minArgs: 1, maxArgs: 1, adminOnly: true, handle: r.handleImage},
		"patt":      {minArgs: 1, maxArgs: 1, adminOnly: true, handle: r.handlePatt},
		"trust":     {minArgs: 1, maxArgs: 1, adminOnly: true, handle: r.handleTrust},
		"trusted":   {minArgs: 0, maxArgs: 0, adminOnly: true, handle: r.handleTrusted},
		"broadcast": {minArgs: 0, maxArgs: 0, adminOnly: true, handle: r.handleBroadcast},
	}

	// Catch table typos at startup instead of at call time.
	for name, cmd := range r.commands {
		if name == "" || cmd.handle == nil || cmd.minArgs > cmd.maxArgs {
			return nil, errors.New("invalid command table entry", z.Str("command", name))
		}
	}

	return r, nil
}

// Handle processes a single inbound update. It never returns an error;
// all failures end as a logged failure reply or a log line.
func (r *Router) Handle(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.Chat.ID == 0 || msg.From.ID == 0 {
		return
	}

	tokens, err := shlex.Split(msg.Text)
	if err != nil {
		if strings.HasPrefix(msg.Text, r.keyword) {
			r.reply(ctx, msg, failureReply)
		}

		return
	}

	if len(tokens) == 0 || tokens[0] != r.keyword {
		return // Not ours.
	}

	reporter := Reporter{
		ID:        ReporterID(strconv.FormatInt(msg.From.ID, 10)),
		ChatID:    msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
	}
	r.store.RegisterReporter(reporter)

	ctx = log.WithCtx(ctx, z.Str("reporter", string(reporter.ID)))

	if len(tokens) < 2 {
		commandFailures.Inc()
		r.reply(ctx, msg, failureReply)

		return
	}

	name := tokens[1]
	args := tokens[2:]

	cmd, ok := r.commands[name]
	if !ok || len(args) < cmd.minArgs || len(args) > cmd.maxArgs ||
		(cmd.adminOnly && reporter.ID != r.adminID) {
		commandFailures.Inc()
		log.Debug(ctx, "Rejected command", z.Str("command", name), z.Int("args", len(args)))
		r.reply(ctx, msg, failureReply)

		return
	}

	reply, err := cmd.handle(ctx, call{reporter: reporter, args: args})
	if err != nil {
		commandFailures.Inc()
		log.Warn(ctx, "Command handler failed", err, z.Str("command", name))
		r.reply(ctx, msg, failureReply+": "+err.Error())

		return
	}

	commandCounter.WithLabelValues(name).Inc()
	r.reply(ctx, msg, reply)
}

// reply schedules the reply send on the worker pool so a slow network call
// never blocks command processing.
func (r *Router) reply(ctx context.Context, msg *Message, text string) {
	chatID, replyTo := msg.Chat.ID, msg.ID
	r.pool.Submit(ctx, func(ctx context.Context) {
		if err := r.msgr.SendMessage(ctx, chatID, text, replyTo); err != nil {
			log.Error(ctx, "Send reply failed", err, z.I64("chat_id", chatID))
		}
	})
}

func (r *Router) handleHelp(context.Context, call) (string, error) {
	return helpReply, nil
}

func (r *Router) handleReport(ctx context.Context, c call) (string, error) {
	index, err := strconv.Atoi(c.args[0])
	if err != nil {
		return "", errors.New("invalid portal index", z.Str("index", c.args[0]))
	}

	var label, symbol string
	if len(c.args) == 2 {
		symbol = c.args[1]
	} else {
		label, symbol = c.args[1], c.args[2]
	}

	if err := r.store.SubmitReport(c.reporter.ID, index, label, symbol); err != nil {
		return "", err
	}

	r.sched.RequestDump(ctx)
	r.sched.RequestBroadcast(ctx)

	return fmt.Sprintf("recorded portal %d: %s", index, symbol), nil
}

func (r *Router) handleStatus(_ context.Context, c call) (string, error) {
	var b strings.Builder

	b.WriteString("your reports:\n")
	b.WriteString(formatReports(r.store.LatestReportsOf(c.reporter.ID)))

	if r.store.IsTrusted(c.reporter.ID) {
		view := r.store.ConsensusView()
		pattern, _ := r.store.Template()

		b.WriteString("\nconsensus:\n")
		b.WriteString(formatReports(view))
		if pattern != "" {
			b.WriteString("\npasscode: " + RenderSecret(pattern, view))
		}
	}

	return b.String(), nil
}

func (r *Router) handleImage(ctx context.Context, c call) (string, error) {
	r.store.SetImageSource(c.args[0])
	r.sched.RequestDump(ctx)

	return "image source updated", nil
}

func (r *Router) handlePatt(ctx context.Context, c call) (string, error) {
	r.store.SetTemplate(c.args[0])
	r.sched.RequestDump(ctx)

	return "pattern updated", nil
}

func (r *Router) handleTrust(ctx context.Context, c call) (string, error) {
	trusted, err := r.store.TrustByHandle(c.args[0])
	if err != nil {
		return "", err
	}

	r.sched.RequestDump(ctx)

	return "trusted " + trusted.Handle(), nil
}

func (r *Router) handleTrusted(_ context.Context, c call) (string, error) {
	var b strings.Builder

	b.WriteString("trusted reporters:")
	for _, t := range r.store.ListTrusted() {
		b.WriteString("\n" + string(t.ID))
		if handle := t.Handle(); handle != "" {
			b.WriteString(" " + handle)
		}
	}

	return b.String(), nil
}

func (r *Router) handleBroadcast(ctx context.Context, c call) (string, error) {
	if err := r.bcaster.ForceBroadcast(ctx); err != nil {
		return "", err
	}

	return "broadcast sent", nil
}

func formatReports(reports []IndexedReport) string {
	if len(reports) == 0 {
		return "(none)"
	}

	lines := make([]string, 0, len(reports))
	for _, r := range reports {
		line := strconv.Itoa(r.Index) + ":"
		if r.Label != "" {
			line += " " + r.Label
		}
		if r.Symbol != "" {
			line += " " + r.Symbol
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
