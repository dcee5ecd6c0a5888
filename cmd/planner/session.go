package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/spf13/cobra"
)

var countryCmd = &cobra.Command{
	Use:   "country CODE NAME",
	Short: "focus a country, or clear it when it is already focused (controller only)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *planner.Session) error {
			return s.ClickCountry(strings.Join(args[1:], " "))
		})
	},
}

var opportunityCmd = &cobra.Command{
	Use:   "opportunity CODE ID",
	Short: "focus an opportunity from the catalog",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *planner.Session) error {
			return s.SelectOpportunity(args[1])
		})
	},
}

var backCmd = &cobra.Command{
	Use:   "back CODE",
	Short: "leave the focused opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *planner.Session) error {
			return s.Back(ctx)
		})
	},
}

var sayCmd = &cobra.Command{
	Use:   "say CODE MESSAGE",
	Short: "post a chat message to a room",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *planner.Session) error {
			_, err := s.SendMessage(ctx, strings.Join(args[1:], " "))
			return err
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch CODE",
	Short: "follow a room live and drive it from stdin",
	Long: `Follow a room live. Commands read from stdin:

  country NAME     focus or clear a country (controller only)
  pick ID          focus an opportunity
  back             leave the focused opportunity
  next, prev       page through the catalog
  say TEXT         post a chat message (bare text works too)
  quit             leave the view`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		v := &viewer{out: cmd.OutOrStdout(), terminated: make(chan string, 1)}

		s, err := planner.Mount(ctx, args[0], a.client.UserId(), a.sessionConfig(ctx), planner.SessionEvents{
			OnFocus:      v.focus,
			OnPage:       v.page,
			OnMessages:   v.messages,
			OnError:      v.error,
			OnTerminated: v.terminate,
		})
		if err != nil {
			return fmt.Errorf("open room %s: %w", args[0], err)
		}
		defer s.Unmount()
		v.attach(s)

		v.printf("watching %s (controller: %t)\n", s.RoomCode(), s.IsController())

		lines := make(chan string)
		go readLines(cmd.InOrStdin(), lines)

		for {
			select {
			case <-ctx.Done():
				return nil
			case reason := <-v.terminated:
				v.printf("%s\n", reason)
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := v.run(ctx, line); quit {
					return nil
				}
			}
		}
	},
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// viewer prints session events. Callbacks arrive on sync goroutines.
type viewer struct {
	mu         sync.Mutex
	out        io.Writer
	session    *planner.Session
	seen       map[string]bool
	terminated chan string
}

func (v *viewer) attach(s *planner.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.session = s
}

func (v *viewer) current() *planner.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session
}

func (v *viewer) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

func (v *viewer) focus(f planner.Focus, move planner.CameraMove) {
	v.printf("focus: %s (camera %.2f,%.2f alt %.2f)\n", f, move.To.Lat, move.To.Lng, move.To.Altitude)
}

func (v *viewer) page(p planner.Page) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "opportunities page %d/%d\n", p.Number, p.Total)
	for _, o := range p.Items {
		fmt.Fprintf(v.out, "  %-12s %s (%s)\n", o.Id, o.Name, o.Country)
	}
}

// messages prints only entries not shown before.
func (v *viewer) messages(entries []planner.ChatEntry) {
	v.mu.Lock()
	if v.seen == nil {
		v.seen = make(map[string]bool)
	}
	var fresh []planner.ChatEntry
	for _, e := range entries {
		if e.Pending || v.seen[e.Id] {
			continue
		}
		v.seen[e.Id] = true
		fresh = append(fresh, e)
	}
	s := v.session
	v.mu.Unlock()

	for _, e := range fresh {
		author := e.UserId
		if s != nil {
			author = s.AuthorName(context.Background(), e.UserId)
		}
		v.printf("[%s] %s: %s\n", e.CreatedAt.Local().Format("15:04"), author, e.Message)
	}
}

func (v *viewer) error(err error) {
	v.printf("error: %v\n", err)
}

func (v *viewer) terminate(reason string) {
	select {
	case v.terminated <- reason:
	default:
	}
}

// run executes one stdin command and reports whether to quit.
func (v *viewer) run(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if verb == "quit" || verb == "exit" {
		return true
	}

	s := v.current()
	if s == nil {
		v.printf("not watching a room yet\n")
		return false
	}

	var err error
	switch verb {
	case "country":
		err = s.ClickCountry(rest)
	case "pick":
		err = s.SelectOpportunity(rest)
	case "back":
		err = s.Back(ctx)
	case "next":
		s.NextPage()
	case "prev":
		s.PrevPage()
	case "say":
		_, err = s.SendMessage(ctx, rest)
	default:
		_, err = s.SendMessage(ctx, line)
	}

	if err != nil {
		if errors.Is(err, planner.ErrIneligibleCountry) {
			v.printf("%q cannot be selected\n", rest)
		} else {
			v.error(err)
		}
	}
	return false
}
