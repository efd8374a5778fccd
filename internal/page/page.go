// Package page holds the most recently displayed submission document and
// detects which kind of input it shows.
package page

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"pipeline-console/internal/domain"
)

// Element IDs the model server uses to mark the last submission.
const (
	AudioMarkerID = "uploaded_audio"
	TextMarkerID  = "submitted_text"
)

// ErrNoSubmission is returned when neither marker is displayed.
var ErrNoSubmission = errors.New("no recent audio or text submission")

// View is the structured form of a submission document. UpdatedAt is zero
// until a document has been stored.
type View struct {
	Mode      domain.Mode `json:"mode,omitempty"`
	Text      string      `json:"text,omitempty"`
	AudioURL  string      `json:"audioUrl,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Submission converts the view into the payload for the model call.
func (v View) Submission() (domain.Submission, error) {
	switch v.Mode {
	case domain.ModeAudio:
		return domain.Submission{Mode: domain.ModeAudio}, nil
	case domain.ModeText:
		return domain.Submission{Mode: domain.ModeText, Text: v.Text}, nil
	default:
		return domain.Submission{}, ErrNoSubmission
	}
}

// Parse reads an HTML document and extracts the submission markers.
// The audio marker wins when both are present.
func Parse(r io.Reader) (View, error) {
	root, err := html.Parse(r)
	if err != nil {
		return View{}, fmt.Errorf("parse submission document: %w", err)
	}

	if el := findByID(root, AudioMarkerID); el != nil {
		return View{Mode: domain.ModeAudio, AudioURL: audioSource(el)}, nil
	}
	if el := findByID(root, TextMarkerID); el != nil {
		return View{Mode: domain.ModeText, Text: strings.TrimSpace(textContent(el))}, nil
	}
	return View{}, nil
}

// Store keeps the last document returned by the submit endpoint.
type Store struct {
	mu   sync.RWMutex
	doc  string
	view View
	now  func() time.Time
}

// NewStore creates an empty store, so no submission is displayed yet.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Replace stores a new document and returns its parsed view.
// A document that fails to parse leaves the previous one in place.
func (s *Store) Replace(doc string) (View, error) {
	view, err := Parse(strings.NewReader(doc))
	if err != nil {
		return View{}, err
	}
	view.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.view = view
	return view, nil
}

// Current returns the view of the displayed document.
func (s *Store) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Document returns the raw stored document.
func (s *Store) Document() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Submission reports what the trigger would send right now.
func (s *Store) Submission() (domain.Submission, error) {
	return s.Current().Submission()
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// audioSource returns the element's src or its first <source> child's src.
func audioSource(n *html.Node) string {
	if src := attr(n, "src"); src != "" {
		return src
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "source" {
			if src := attr(c, "src"); src != "" {
				return src
			}
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
