package camnotify

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const consoleHelp = `keys:
  tab / shift+tab           move between fields
  up / down                 pick a device when the device field is focused
  enter                     apply the focused field
  ctrl+s                    start the loop with the current fields (idle only)
  ctrl+x                    stop the loop (running only)
  ctrl+r                    rescan capture devices
  f1                        show this help
  esc / ctrl+c              stop and exit
the first capture happens one interval after start
`

// maxConsoleMessages caps the message pane.
const maxConsoleMessages = 200

type consoleField int

const (
	fieldCredential consoleField = iota
	fieldDestination
	fieldInterval
	fieldDevice
)

var consoleFieldNames = [...]string{"credential", "destination", "interval", "device"}

// ConsoleOptions wire a Console. Scheduler and Catalog are required.
type ConsoleOptions struct {
	Scheduler *Scheduler
	Catalog   DeviceCatalog
	// Initial seeds the editable fields, usually the stored settings.
	Initial Config
	// Out receives a copy of every console message. Optional.
	Out io.Writer
}

// Console is the terminal control surface, a bubbletea model. It edits a
// draft Config and triggers start and stop; start is ignored unless idle
// and stop is ignored while idle.
type Console struct {
	ctx     context.Context
	sched   *Scheduler
	catalog DeviceCatalog
	draft   Config
	out     io.Writer

	messages []string
	inputs   []textinput.Model
	focus    consoleField

	devices   []int
	picked    int
	deviceErr error

	width int
	now   time.Time
}

// NewConsole builds a console.
func NewConsole(opts ConsoleOptions) (*Console, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("console scheduler cannot be nil")
	}
	if opts.Catalog == nil {
		return nil, errors.New("console catalog cannot be nil")
	}
	c := &Console{
		ctx:     context.Background(),
		sched:   opts.Scheduler,
		catalog: opts.Catalog,
		draft:   opts.Initial,
		out:     opts.Out,
		picked:  -1,
		now:     time.Now(),
	}
	c.inputs = newConsoleInputs(opts.Initial)
	c.inputs[fieldCredential].Focus()
	return c, nil
}

func newConsoleInputs(cfg Config) []textinput.Model {
	inputs := make([]textinput.Model, len(consoleFieldNames))
	for i := range inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Width = 48
		inputs[i] = in
	}
	inputs[fieldCredential].EchoMode = textinput.EchoPassword
	inputs[fieldCredential].Placeholder = "tenant access token"
	inputs[fieldCredential].SetValue(cfg.Credential)
	inputs[fieldDestination].Placeholder = "chat id"
	inputs[fieldDestination].SetValue(cfg.DestinationID)
	inputs[fieldInterval].CharLimit = 6
	inputs[fieldInterval].Validate = func(s string) error {
		if s == "" {
			return nil
		}
		if _, err := strconv.Atoi(s); err != nil {
			return errors.New("interval must be a number")
		}
		return nil
	}
	inputs[fieldInterval].SetValue(strconv.Itoa(cfg.IntervalSeconds))
	inputs[fieldDevice].SetValue(strconv.Itoa(cfg.DeviceIndex))
	return inputs
}

// Draft returns the current editable fields.
func (c *Console) Draft() Config {
	return c.draft
}

// Messages returns the message pane, oldest first.
func (c *Console) Messages() []string {
	return slices.Clone(c.messages)
}

// Run drives the console as a full-screen program until the user quits or
// ctx is cancelled. The scheduler is stopped before Run returns.
func (c *Console) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	c.ctx = ctx
	defer c.sched.Stop()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(c, opts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run console")
	}
	return nil
}

// Execute runs one command line and reports whether the console should exit.
// Key presses are translated into these commands.
func (c *Console) Execute(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "start":
		c.start(ctx)
	case "stop":
		c.stop()
	case "status":
		c.status()
	case "set":
		if len(fields) < 3 {
			c.printf("usage: set <field> <value>\n")
			return false
		}
		c.set(ctx, strings.ToLower(fields[1]), strings.Join(fields[2:], " "))
	case "show":
		c.show()
	case "devices":
		c.listDevices(ctx)
	case "help", "?":
		c.printf("%s", consoleHelp)
	case "quit", "exit":
		return true
	default:
		c.printf("unknown command %q\n", fields[0])
	}
	return false
}

func (c *Console) start(ctx context.Context) {
	if state := c.sched.Status(); state != StateIdle {
		c.printf("ignored: scheduler is %s\n", state)
		return
	}
	if err := c.sched.Start(ctx, c.draft); err != nil {
		c.printf("start failed: %v\n", err)
		return
	}
	c.printf("started: device %d every %ds, first capture in %ds\n",
		c.draft.DeviceIndex, c.draft.IntervalSeconds, c.draft.IntervalSeconds)
}

func (c *Console) stop() {
	if c.sched.Status() == StateIdle {
		c.printf("ignored: scheduler is idle\n")
		return
	}
	c.sched.Stop()
	c.printf("stopped\n")
}

func (c *Console) status() {
	stats := c.sched.Stats()
	c.printf("state: %s\n", c.sched.Status())
	c.printf("cycles: %d  ok: %d  capture failed: %d  upload failed: %d\n",
		stats.Cycles, stats.Successes, stats.CaptureFailures, stats.UploadFailures)
	if last := stats.LastResult; last != nil {
		c.printf("last: %s\n", describeResult(last))
	}
}

func describeResult(res *CycleResult) string {
	if res.Err != nil {
		return fmt.Sprintf("%s at %s (%s): %v", res.Outcome, res.StartedAt.Format("15:04:05"), ErrorKind(res.Err), res.Err)
	}
	return fmt.Sprintf("%s at %s message %s", res.Outcome, res.StartedAt.Format("15:04:05"), res.Confirmation.MessageID)
}

func (c *Console) set(ctx context.Context, field, value string) {
	value = strings.TrimSpace(value)
	switch field {
	case "credential", "token":
		c.draft.Credential = value
	case "destination", "destination_id", "chat":
		c.draft.DestinationID = value
	case "interval", "interval_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			c.printf("interval must be a whole number of seconds >= 1\n")
			return
		}
		c.draft.IntervalSeconds = n
	case "device", "device_index":
		n, err := strconv.Atoi(value)
		if err != nil {
			c.printf("device must be an index\n")
			return
		}
		available, err := c.catalog.ListDevices(ctx)
		if err != nil {
			c.printf("list devices: %v\n", err)
			return
		}
		if !slices.Contains(available, n) {
			c.printf("device %d not available, choose one of %v\n", n, available)
			return
		}
		c.draft.DeviceIndex = n
	default:
		c.printf("unknown field %q\n", field)
		return
	}
	if c.sched.Status() != StateIdle {
		c.printf("%s updated, takes effect on next start\n", field)
	} else {
		c.printf("%s updated\n", field)
	}
	log.Debug().Str("field", field).Msg("console field updated")
}

func (c *Console) show() {
	r := c.draft.Redacted()
	c.printf("credential:  %s\n", r.Credential)
	c.printf("destination: %s\n", r.DestinationID)
	c.printf("interval:    %ds\n", r.IntervalSeconds)
	c.printf("device:      %d\n", r.DeviceIndex)
}

func (c *Console) listDevices(ctx context.Context) {
	available, err := c.catalog.ListDevices(ctx)
	if err != nil {
		c.printf("list devices: %v\n", err)
		return
	}
	c.setDevices(available, nil)
	if len(available) == 0 {
		c.printf("no capture devices found\n")
		return
	}
	for _, idx := range available {
		marker := " "
		if idx == c.draft.DeviceIndex {
			marker = "*"
		}
		c.printf("%s %d\n", marker, idx)
	}
}

// printf appends to the message pane, one entry per line.
func (c *Console) printf(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if c.out != nil {
		_, _ = io.WriteString(c.out, text)
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		c.messages = append(c.messages, line)
	}
	if n := len(c.messages) - maxConsoleMessages; n > 0 {
		c.messages = c.messages[n:]
	}
}
