package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cast"

	"github.com/lehigh-university-libraries/scanpos/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))
	focusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")).Italic(true)
)

// Terminal renders each prompt as a small bubbletea form
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out}
}

func (t *Terminal) PromptPriceQuantity(ctx context.Context, initial PriceQuantity) (Response[PriceQuantity], error) {
	price := ""
	if initial.Price > 0 {
		price = strconv.FormatInt(initial.Price, 10)
	}
	qty := strconv.FormatInt(max(1, initial.Quantity), 10)

	values, ok, err := t.run(ctx, newForm("Add item", field{label: "Price (¥)", value: price}, field{label: "Quantity", value: qty}))
	if !ok {
		return Cancelled[PriceQuantity](), err
	}
	return Confirm(PriceQuantity{
		Price:    parseYen(values[0]),
		Quantity: models.Int(values[1], 1),
	}.Normalize()), nil
}

func (t *Terminal) PromptDiscount(ctx context.Context, current Discount) (Response[Discount], error) {
	value := ""
	if current.Value > 0 {
		value = strconv.FormatFloat(current.Value, 'f', -1, 64)
	}
	form := newForm("Discount",
		field{label: "Kind (none/percent/amount)", value: string(current.Kind)},
		field{label: "Value", value: value},
	)

	values, ok, err := t.run(ctx, form)
	if !ok {
		return Cancelled[Discount](), err
	}
	return Confirm(Discount{
		Kind:  models.ParseDiscountKind(values[0]),
		Value: models.Float(values[1]),
	}.Normalize()), nil
}

func (t *Terminal) PromptNewProduct(ctx context.Context, code string) (Response[NewProduct], error) {
	form := newForm(fmt.Sprintf("New product %s", code), field{label: "Name"}, field{label: "Price (¥)"})

	values, ok, err := t.run(ctx, form)
	if !ok {
		return Cancelled[NewProduct](), err
	}
	return Confirm(NewProduct{Name: values[0], Price: parseYen(values[1])}.Normalize()), nil
}

func (t *Terminal) run(ctx context.Context, f *form) ([]string, bool, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}

	if _, err := tea.NewProgram(f, opts...).Run(); err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to run prompt: %w", err)
	}
	if !f.submitted {
		return nil, false, ctx.Err()
	}
	return f.values(), true, nil
}

// parseYen reads "1,200", "¥1200" or "1200円" as 1200
func parseYen(s string) int64 {
	s = strings.NewReplacer(",", "", "¥", "", "￥", "", "円", "").Replace(strings.TrimSpace(s))
	n, err := cast.ToInt64E(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type field struct {
	label string
	value string
}

type form struct {
	title     string
	fields    []field
	focus     int
	submitted bool
	cancelled bool
}

func newForm(title string, fields ...field) *form {
	return &form{title: title, fields: fields}
}

func (f *form) values() []string {
	out := make([]string, len(f.fields))
	for i, fl := range f.fields {
		out[i] = strings.TrimSpace(fl.value)
	}
	return out
}

func (f *form) Init() tea.Cmd { return nil }

func (f *form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil
	}

	n := len(f.fields)
	switch key.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		f.cancelled = true
		return f, tea.Quit
	case tea.KeyEnter:
		if f.focus == n-1 {
			f.submitted = true
			return f, tea.Quit
		}
		f.focus++
	case tea.KeyTab, tea.KeyDown:
		f.focus = (f.focus + 1) % n
	case tea.KeyShiftTab, tea.KeyUp:
		f.focus = (f.focus - 1 + n) % n
	case tea.KeyBackspace:
		v := []rune(f.fields[f.focus].value)
		if len(v) > 0 {
			f.fields[f.focus].value = string(v[:len(v)-1])
		}
	case tea.KeySpace:
		f.fields[f.focus].value += " "
	case tea.KeyRunes:
		f.fields[f.focus].value += string(key.Runes)
	}
	return f, nil
}

func (f *form) View() string {
	if f.submitted || f.cancelled {
		return ""
	}

	lines := []string{titleStyle.Render(f.title), ""}
	for i, fl := range f.fields {
		prefix := "  "
		if i == f.focus {
			prefix = focusStyle.Render("> ")
		}
		lines = append(lines, prefix+labelStyle.Render(fl.label+": ")+valueStyle.Render(fl.value))
	}
	lines = append(lines, "", hintStyle.Render("tab next  enter confirm  esc cancel"))
	return strings.Join(lines, "\n") + "\n"
}
