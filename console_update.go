package camnotify

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type consoleTickMsg time.Time

type devicesMsg struct {
	devices []int
	err     error
}

func consoleTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func scanDevicesCmd(ctx context.Context, catalog DeviceCatalog) tea.Cmd {
	return func() tea.Msg {
		devices, err := catalog.ListDevices(ctx)
		return devicesMsg{devices: devices, err: err}
	}
}

// Init scans devices and starts the clock.
func (c *Console) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, scanDevicesCmd(c.ctx, c.catalog), consoleTickCmd())
}

// Update handles key presses and background results.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		return c, nil

	case consoleTickMsg:
		c.now = time.Time(msg)
		return c, consoleTickCmd()

	case devicesMsg:
		c.setDevices(msg.devices, msg.err)
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			c.sched.Stop()
			return c, tea.Quit
		case "tab":
			return c, c.moveFocus(1)
		case "shift+tab":
			return c, c.moveFocus(-1)
		case "up", "down":
			if c.focus == fieldDevice {
				step := 1
				if msg.String() == "up" {
					step = -1
				}
				c.pickDevice(step)
				return c, nil
			}
			if msg.String() == "up" {
				return c, c.moveFocus(-1)
			}
			return c, c.moveFocus(1)
		case "enter":
			c.applyField(c.focus)
			return c, nil
		case "ctrl+s":
			if c.CanStart() {
				c.applyInputs()
				c.Execute(c.ctx, "start")
			}
			return c, nil
		case "ctrl+x":
			if c.CanStop() {
				c.Execute(c.ctx, "stop")
			}
			return c, nil
		case "ctrl+r":
			c.Execute(c.ctx, "devices")
			return c, nil
		case "f1":
			c.Execute(c.ctx, "help")
			return c, nil
		}
		// The device field only changes through the picker.
		if c.focus == fieldDevice {
			return c, nil
		}
	}

	var cmd tea.Cmd
	c.inputs[c.focus], cmd = c.inputs[c.focus].Update(msg)
	return c, cmd
}

// CanStart reports whether the start key is live.
func (c *Console) CanStart() bool {
	return c.sched.Status() == StateIdle
}

// CanStop reports whether the stop key is live.
func (c *Console) CanStop() bool {
	return c.sched.Status() != StateIdle
}

func (c *Console) moveFocus(step int) tea.Cmd {
	c.inputs[c.focus].Blur()
	n := len(c.inputs)
	c.focus = consoleField((int(c.focus) + step + n) % n)
	return c.inputs[c.focus].Focus()
}

// applyField routes the focused input through the set command.
func (c *Console) applyField(field consoleField) {
	value := strings.TrimSpace(c.inputs[field].Value())
	if value == "" {
		c.printf("%s is empty\n", consoleFieldNames[field])
		return
	}
	c.Execute(c.ctx, "set "+consoleFieldNames[field]+" "+value)
	c.syncInput(field)
}

// applyInputs applies every input that differs from the draft.
func (c *Console) applyInputs() {
	for i := range c.inputs {
		field := consoleField(i)
		if strings.TrimSpace(c.inputs[i].Value()) != c.draftValue(field) {
			c.applyField(field)
		}
	}
}

func (c *Console) draftValue(field consoleField) string {
	switch field {
	case fieldCredential:
		return c.draft.Credential
	case fieldDestination:
		return c.draft.DestinationID
	case fieldInterval:
		return strconv.Itoa(c.draft.IntervalSeconds)
	default:
		return strconv.Itoa(c.draft.DeviceIndex)
	}
}

// syncInput resets a rejected input to the draft value.
func (c *Console) syncInput(field consoleField) {
	switch field {
	case fieldInterval:
		c.inputs[field].SetValue(c.draftValue(field))
	case fieldDevice:
		c.inputs[field].SetValue(c.draftValue(field))
		c.picked = slices.Index(c.devices, c.draft.DeviceIndex)
	}
}

func (c *Console) setDevices(devices []int, err error) {
	c.devices = devices
	c.deviceErr = err
	c.picked = slices.Index(devices, c.draft.DeviceIndex)
	if c.picked >= 0 {
		c.inputs[fieldDevice].SetValue(strconv.Itoa(devices[c.picked]))
	}
}

func (c *Console) pickDevice(step int) {
	if len(c.devices) == 0 {
		return
	}
	n := len(c.devices)
	if c.picked < 0 {
		c.picked = 0
	} else {
		c.picked = (c.picked + step + n) % n
	}
	c.inputs[fieldDevice].SetValue(strconv.Itoa(c.devices[c.picked]))
}
