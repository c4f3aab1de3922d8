// Package console implements the interactive kubejit shell: a tabbed,
// role-gated prompt over one long-lived session.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/admin"
	"github.com/p-blackswan/kubejit/internal/app"
	"github.com/p-blackswan/kubejit/internal/approval"
	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/history"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/requestform"
	"github.com/p-blackswan/kubejit/internal/session"
	"github.com/p-blackswan/kubejit/internal/tabs"
)

var errQuit = errors.New("quit")

// A command is one shell verb. A command bound to a tab is only available
// when that tab is visible, and running it makes the tab active.
type command struct {
	usage string
	help  string
	tab   *tabs.Tab
	run   func(ctx context.Context, args []string, rest string) error
}

// Shell is the interactive console.
type Shell struct {
	app    *app.App
	logger zerolog.Logger

	active    tabs.Tab
	form      *requestform.Form
	approvals *approval.Workflow
	search    *history.Search
	results   *history.Table
	filter    string
	admin     *admin.Actions

	commands map[string]*command
	names    []string

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a shell over a.
func New(a *app.App) *Shell {
	s := &Shell{
		app:    a,
		logger: a.Logger.With().Str("component", "console").Logger(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
	s.register()
	return s
}

func tabRef(t tabs.Tab) *tabs.Tab { return &t }

func (s *Shell) register() {
	request, approve, hist, adm := tabRef(tabs.Request), tabRef(tabs.Approve), tabRef(tabs.History), tabRef(tabs.Admin)
	s.commands = map[string]*command{
		"help":    {usage: "help", help: "list commands", run: s.cmdHelp},
		"tab":     {usage: "tab <name>", help: "switch tab", run: s.cmdTab},
		"whoami":  {usage: "whoami", help: "show the signed-in user", run: s.cmdWhoami},
		"dismiss": {usage: "dismiss [success|error]", help: "hide banners", run: s.cmdDismiss},
		"logout":  {usage: "logout", help: "sign out and exit", run: s.cmdLogout},
		"quit":    {usage: "quit", help: "exit the console", run: func(context.Context, []string, string) error { return errQuit }},

		"options": {usage: "options", help: "list clusters and roles", tab: request, run: s.cmdOptions},
		"user":    {usage: "user <email>...", help: "add user emails", tab: request, run: s.tagAdder(func(f *requestform.Form) *requestform.TagInput { return f.Users })},
		"unuser":  {usage: "unuser <email>", help: "remove a user email", tab: request, run: s.tagRemover(func(f *requestform.Form) *requestform.TagInput { return f.Users })},
		"ns":      {usage: "ns <namespace>...", help: "add namespaces", tab: request, run: s.tagAdder(func(f *requestform.Form) *requestform.TagInput { return f.Namespaces })},
		"unns":    {usage: "unns <namespace>", help: "remove a namespace", tab: request, run: s.tagRemover(func(f *requestform.Form) *requestform.TagInput { return f.Namespaces })},
		"justify": {usage: "justify <text>", help: "set the justification", tab: request, run: s.cmdJustify},
		"cluster": {usage: "cluster <name>", help: "select the cluster", tab: request, run: s.cmdCluster},
		"role":    {usage: "role <name>", help: "select the role", tab: request, run: s.cmdRole},
		"team":    {usage: "team <id|name>", help: "select the approving team", tab: request, run: s.cmdTeam},
		"start":   {usage: "start <when>", help: "set the start (now, +2h, 2006-01-02 15:04)", tab: request, run: s.cmdStart},
		"end":     {usage: "end <when>", help: "set the end", tab: request, run: s.cmdEnd},
		"prefill": {usage: "prefill <file>", help: "load a YAML or JSON bulk file", tab: request, run: s.cmdPrefill},
		"review":  {usage: "review", help: "show the request", tab: request, run: s.cmdReview},
		"submit":  {usage: "submit", help: "submit the request", tab: request, run: s.cmdSubmit},
		"clear":   {usage: "clear", help: "reset the form", tab: request, run: s.cmdClear},

		"refresh": {usage: "refresh", help: "reload pending approvals", tab: approve, run: s.cmdRefresh},
		"pending": {usage: "pending", help: "list pending approvals", tab: approve, run: s.cmdPending},
		"select":  {usage: "select <id>...", help: "toggle requests in the selection", tab: approve, run: s.cmdSelect},
		"approve": {usage: "approve", help: "approve the selection", tab: approve, run: s.decider(models.StatusApproved)},
		"reject":  {usage: "reject", help: "reject the selection", tab: approve, run: s.decider(models.StatusRejected)},

		"search": {usage: "search [limit=N] [user=ID] [username=NAME] [start=WHEN] [end=WHEN]", help: "search history", tab: hist, run: s.cmdSearch},
		"filter": {usage: "filter [text]", help: "filter the results, no text clears", tab: hist, run: s.cmdFilter},
		"sort":   {usage: "sort <column> [desc]", help: "sort the results", tab: hist, run: s.cmdSort},
		"export": {usage: "export <file>", help: "write the results as CSV", tab: hist, run: s.cmdExport},

		"clean": {usage: "clean", help: "delete expired unapproved requests", tab: adm, run: s.cmdClean},
	}
	s.commands["exit"] = s.commands["quit"]
	for name := range s.commands {
		if name != "exit" {
			s.names = append(s.names, name)
		}
	}
	sort.Strings(s.names)
}

// Run signs in if needed and reads commands until quit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	if err := s.ensureSession(ctx); err != nil {
		return err
	}
	s.app.StartBuildFetch(ctx)
	s.printHeader()

	for {
		s.app.PrintBanners()
		line, err := s.app.ReadLine(s.prompt())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.Exec(ctx, line); errors.Is(err, errQuit) {
			return nil
		}

		if s.app.Session.State() != session.Authenticated {
			s.app.Printf("Your session has ended.\n")
			s.resetViews()
			if err := s.ensureSession(ctx); err != nil {
				return err
			}
			s.printHeader()
		}
	}
}

// Exec runs one command line and reports its error. It returns errQuit
// when the shell should stop.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	cmd, ok := s.commands[name]
	if !ok {
		s.app.Printf("Unknown command %q. Type help.\n", name)
		return nil
	}

	prev := s.app.Banners.Current(banner.Error)
	err := s.dispatch(ctx, cmd, fields[1:], rest)
	if err == nil || errors.Is(err, errQuit) {
		return err
	}
	s.logger.Debug().Err(err).Str("command", name).Msg("command failed")
	if cur := s.app.Banners.Current(banner.Error); cur != nil && (prev == nil || *cur != *prev) {
		return nil
	}
	s.report(err)
	return nil
}

func (s *Shell) dispatch(ctx context.Context, cmd *command, args []string, rest string) error {
	if cmd.tab != nil {
		if err := tabs.Require(*cmd.tab, s.app.Session.Permissions()); err != nil {
			return err
		}
		if s.active != *cmd.tab {
			s.active = *cmd.tab
			s.printHeader()
		}
	}
	return cmd.run(ctx, args, rest)
}

func (s *Shell) report(err error) {
	var fe kerrors.FieldErrors
	switch {
	case errors.Is(err, kerrors.ErrNotConfirmed):
		s.app.Printf("Cancelled.\n")
	case errors.As(err, &fe):
		keys := make([]string, 0, len(fe))
		for k := range fe {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.app.Printf("  %s: %s\n", k, fe[k])
		}
	default:
		s.app.Printf("Error: %s\n", kerrors.UserMessage(err, err.Error()))
	}
}

func (s *Shell) ensureSession(ctx context.Context) error {
	if err := s.app.Authenticate(ctx); err == nil {
		return nil
	}
	if !s.app.Confirm("You are not signed in. Sign in now?", false) {
		return kerrors.ErrUnauthorized
	}
	if _, err := s.app.SignIn(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Shell) resetViews() {
	s.active = tabs.Request
	s.form = nil
	s.approvals = nil
	s.search = nil
	s.results = nil
	s.filter = ""
	s.admin = nil
}

func (s *Shell) prompt() string {
	return fmt.Sprintf("kubejit:%s> ", strings.ToLower(s.layout().Active.String()))
}

func (s *Shell) layout() tabs.Layout {
	return tabs.Compose(s.app.Session.Permissions(), s.active)
}

func (s *Shell) printHeader() {
	s.active = s.layout().Active
	s.app.Printf("%s\n", s.app.Header(s.active))
}

func (s *Shell) switchTab(ctx context.Context, t tabs.Tab) error {
	if err := tabs.Require(t, s.app.Session.Permissions()); err != nil {
		return err
	}
	s.active = t
	s.printHeader()
	switch t {
	case tabs.Approve:
		return s.cmdRefresh(ctx, nil, "")
	case tabs.History:
		if s.results == nil {
			return s.cmdSearch(ctx, nil, "")
		}
	}
	return nil
}

func (s *Shell) cmdHelp(context.Context, []string, string) error {
	layout := s.layout()
	for _, name := range s.names {
		cmd := s.commands[name]
		if cmd.tab != nil && !layout.Has(*cmd.tab) {
			continue
		}
		scope := ""
		if cmd.tab != nil {
			scope = "[" + strings.ToLower(cmd.tab.String()) + "] "
		}
		s.app.Printf("  %-24s %s%s\n", cmd.usage, scope, cmd.help)
	}
	return nil
}

func (s *Shell) cmdTab(ctx context.Context, args []string, _ string) error {
	if len(args) != 1 {
		return usageError("tab <name>")
	}
	t, err := tabs.Parse(args[0])
	if err != nil {
		return err
	}
	return s.switchTab(ctx, t)
}

func (s *Shell) cmdWhoami(context.Context, []string, string) error {
	u := s.app.Identity()
	if u == nil {
		return kerrors.ErrUnauthorized
	}
	s.app.Printf("%s <%s> via %s", u.Name, u.Email, s.app.Session.Provider())
	if u.Badge != "" {
		s.app.Printf(" [%s]", u.Badge)
	}
	s.app.Printf("\n")
	return nil
}

func (s *Shell) cmdDismiss(_ context.Context, args []string, _ string) error {
	kinds := []banner.Kind{banner.Success, banner.Error}
	if len(args) == 1 {
		kinds = []banner.Kind{banner.Kind(strings.ToLower(args[0]))}
	}
	for _, k := range kinds {
		s.app.Banners.Dismiss(k)
	}
	return nil
}

func (s *Shell) cmdLogout(ctx context.Context, _ []string, _ string) error {
	s.app.Session.SignOut(ctx)
	s.app.Printf("Signed out.\n")
	return errQuit
}

func usageError(usage string) error {
	return fmt.Errorf("%w: usage: %s", kerrors.ErrInvalidInput, usage)
}

// requestForm loads the option lists on first use.
func (s *Shell) requestForm(ctx context.Context) (*requestform.Form, error) {
	if s.form != nil {
		return s.form, nil
	}
	opts, err := s.app.Client.Options(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading clusters and roles: %w", err)
	}
	s.form = requestform.New(*opts, s.app.Banners)
	return s.form, nil
}

func (s *Shell) withForm(fn func(ctx context.Context, f *requestform.Form, args []string, rest string) error) func(context.Context, []string, string) error {
	return func(ctx context.Context, args []string, rest string) error {
		f, err := s.requestForm(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, f, args, rest)
	}
}

func (s *Shell) cmdOptions(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, _ string) error {
		opts := f.Options()
		s.app.Printf("Clusters: %s\n", strings.Join(opts.Clusters, ", "))
		roles := make([]string, len(opts.Roles))
		for i, r := range opts.Roles {
			roles[i] = r.Name
		}
		s.app.Printf("Roles:    %s\n", strings.Join(roles, ", "))
		if teams := s.app.Session.Permissions().Teams(); len(teams) > 0 {
			names := make([]string, len(teams))
			for i, t := range teams {
				names[i] = t.Name
			}
			s.app.Printf("Teams:    %s\n", strings.Join(names, ", "))
		}
		return nil
	})(ctx, args, rest)
}

func (s *Shell) tagAdder(input func(*requestform.Form) *requestform.TagInput) func(context.Context, []string, string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		in := input(f)
		if !in.Add(rest) {
			return fmt.Errorf("%w: %s", kerrors.ErrInvalidInput, in.Error())
		}
		s.app.Printf("%s\n", strings.Join(in.Tags(), ", "))
		return nil
	})
}

func (s *Shell) tagRemover(input func(*requestform.Form) *requestform.TagInput) func(context.Context, []string, string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, args []string, _ string) error {
		if len(args) != 1 {
			return usageError("unuser|unns <value>")
		}
		in := input(f)
		in.Remove(args[0])
		s.app.Printf("%s\n", strings.Join(in.Tags(), ", "))
		return nil
	})
}

func (s *Shell) cmdJustify(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		return f.SetJustification(rest)
	})(ctx, args, rest)
}

func (s *Shell) cmdCluster(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		return f.SelectCluster(rest)
	})(ctx, args, rest)
}

func (s *Shell) cmdRole(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		return f.SelectRole(rest)
	})(ctx, args, rest)
}

func (s *Shell) cmdTeam(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		return f.SelectApprovingTeam(rest, s.app.Session.Permissions().Teams())
	})(ctx, args, rest)
}

func (s *Shell) cmdStart(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		t, err := requestform.ParseWhen(rest, s.now())
		if err != nil {
			return err
		}
		f.SetStart(t)
		return nil
	})(ctx, args, rest)
}

func (s *Shell) cmdEnd(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		t, err := requestform.ParseWhen(rest, s.now())
		if err != nil {
			return err
		}
		return f.SetEnd(t)
	})(ctx, args, rest)
}

func (s *Shell) cmdPrefill(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, rest string) error {
		if rest == "" {
			return usageError("prefill <file>")
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rest, err)
		}
		b, err := requestform.ParseBulk(data)
		if err != nil {
			return err
		}
		if err := f.Prefill(b); err != nil {
			return err
		}
		s.app.Printf("%s", f.Review())
		return nil
	})(ctx, args, rest)
}

func (s *Shell) cmdReview(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, _ string) error {
		s.app.Printf("%s", f.Review())
		if err := f.Validate(); err != nil {
			s.app.Printf("Not ready to submit:\n")
			return err
		}
		return nil
	})(ctx, args, rest)
}

func (s *Shell) cmdSubmit(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(ctx context.Context, f *requestform.Form, _ []string, _ string) error {
		if err := f.Validate(); err != nil {
			return err
		}
		s.app.Printf("%s", f.Review())
		confirmed := s.app.Confirm("Submit this request?", false)
		out, err := f.Submit(ctx, s.app.Client, s.app.Session.Identity(), confirmed)
		if err != nil {
			return err
		}
		s.app.PrintBanners()
		s.sleep(out.RedirectAfter)
		s.results = nil
		return s.switchTab(ctx, out.Redirect)
	})(ctx, args, rest)
}

func (s *Shell) cmdClear(ctx context.Context, args []string, rest string) error {
	return s.withForm(func(_ context.Context, f *requestform.Form, _ []string, _ string) error {
		f.Reset()
		return nil
	})(ctx, args, rest)
}

func (s *Shell) workflow() *approval.Workflow {
	if s.approvals == nil {
		var approver models.UserIdentity
		if u := s.app.Session.Identity(); u != nil {
			approver = *u
		}
		s.approvals = approval.NewWorkflow(s.app.Client, approver, s.app.Banners, s.app.Metrics, s.app.Logger)
	}
	return s.approvals
}

func (s *Shell) cmdRefresh(ctx context.Context, _ []string, _ string) error {
	if err := s.workflow().Refresh(ctx); err != nil {
		return err
	}
	return s.cmdPending(ctx, nil, "")
}

func (s *Shell) cmdPending(context.Context, []string, string) error {
	w := s.workflow()
	pending := w.Pending()
	if len(pending) == 0 {
		s.app.Printf("No pending requests.\n")
		return nil
	}
	return approval.RenderPending(s.app.Out(), "table", pending, w.Selected())
}

func (s *Shell) cmdSelect(_ context.Context, args []string, _ string) error {
	if len(args) == 0 {
		return usageError("select <id>...")
	}
	w := s.workflow()
	for _, a := range args {
		id, err := strconv.ParseUint(strings.TrimPrefix(a, "#"), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad id %q", kerrors.ErrInvalidInput, a)
		}
		if err := w.Toggle(uint(id)); err != nil {
			return err
		}
	}
	s.app.Printf("Selected: %v\n", w.Selected())
	return nil
}

func (s *Shell) decider(status models.Status) func(context.Context, []string, string) error {
	return func(ctx context.Context, _ []string, _ string) error {
		w := s.workflow()
		prompt, err := w.Review(status)
		if err != nil {
			return err
		}
		_, err = w.Decide(ctx, status, s.app.Confirm(prompt+"?", false))
		return err
	}
}

func (s *Shell) cmdSearch(ctx context.Context, args []string, _ string) error {
	var p history.Params
	for _, a := range args {
		key, val, ok := strings.Cut(a, "=")
		if !ok {
			return usageError(s.commands["search"].usage)
		}
		switch strings.ToLower(key) {
		case "limit":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: bad limit %q", kerrors.ErrInvalidInput, val)
			}
			p.Limit = n
		case "user":
			p.UserID = val
		case "username":
			p.Username = val
		case "start":
			t, err := requestform.ParseWhen(val, s.now())
			if err != nil {
				return err
			}
			p.Start = t
		case "end":
			t, err := requestform.ParseWhen(val, s.now())
			if err != nil {
				return err
			}
			p.End = t
		default:
			return usageError(s.commands["search"].usage)
		}
	}

	if s.search == nil {
		s.search = history.NewSearch(s.app.Client, s.app.Banners, s.app.Logger)
	}
	res, err := s.search.Run(ctx, p, s.app.Session.Identity(), s.app.Session.Permissions())
	if err != nil {
		return err
	}
	s.results = res
	s.filter = ""
	return s.showResults()
}

// view is the results narrowed by the current filter.
func (s *Shell) view() *history.Table {
	if s.filter == "" {
		return s.results
	}
	return s.results.Filter(s.filter)
}

func (s *Shell) showResults() error {
	t := s.view()
	if t.Len() == 0 {
		s.app.Printf("No requests found.\n")
		return nil
	}
	return t.Render(s.app.Out(), "table")
}

func (s *Shell) needResults() error {
	if s.results == nil {
		return fmt.Errorf("%w: run search first", kerrors.ErrInvalidInput)
	}
	return nil
}

func (s *Shell) cmdFilter(_ context.Context, _ []string, rest string) error {
	if err := s.needResults(); err != nil {
		return err
	}
	s.filter = rest
	return s.showResults()
}

func (s *Shell) cmdSort(_ context.Context, args []string, _ string) error {
	if err := s.needResults(); err != nil {
		return err
	}
	if len(args) == 0 || len(args) > 2 {
		return usageError("sort <column> [desc]")
	}
	desc := len(args) == 2 && strings.EqualFold(args[1], "desc")
	if err := s.results.Sort(args[0], desc); err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrInvalidInput, err)
	}
	return s.showResults()
}

func (s *Shell) cmdExport(_ context.Context, _ []string, rest string) error {
	if err := s.needResults(); err != nil {
		return err
	}
	if rest == "" {
		return usageError("export <file>")
	}
	f, err := os.Create(rest)
	if err != nil {
		return err
	}
	view := s.view()
	if err := view.ExportCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.app.Printf("Wrote %d row(s) to %s\n", view.Len(), rest)
	return nil
}

func (s *Shell) cmdClean(ctx context.Context, _ []string, _ string) error {
	if s.admin == nil {
		s.admin = admin.NewActions(s.app.Client, s.app.Banners, s.app.Logger)
	}
	_, err := s.admin.CleanExpired(ctx, s.app.Confirm(admin.ConfirmPrompt, false))
	return err
}
