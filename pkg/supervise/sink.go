package supervise

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/cadence/pkg/bus"
	"github.com/rs/zerolog/log"
)

var prefixColors = []lipgloss.Color{
	"#06B6D4", // cyan
	"#EAB308", // yellow
	"#7C3AED", // purple
	"#22C55E", // green
	"#EF4444", // red
	"#9CA3AF", // gray
}

// sink writes forwarded lines as "[process:pid] text".
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	styles []lipgloss.Style
}

func newSink(out io.Writer, color bool) *sink {
	s := &sink{out: out}
	if color {
		r := lipgloss.NewRenderer(out)
		for _, c := range prefixColors {
			s.styles = append(s.styles, r.NewStyle().Foreground(c).Bold(true))
		}
	}
	return s
}

func (s *sink) prefix(l bus.Line) string {
	p := fmt.Sprintf("[%d:%d]", l.Process, l.PID)
	if len(s.styles) == 0 {
		return p
	}
	return s.styles[(l.Process-1+len(s.styles))%len(s.styles)].Render(p)
}

func (s *sink) write(l bus.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "%s %s\n", s.prefix(l), l.Text); err != nil {
		// Redelivery would not help a broken writer.
		log.Warn().Err(err).Int("process", l.Process).Msg("write line")
	}
	return nil
}
