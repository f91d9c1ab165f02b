// Package regparser streams the DPDP Act text, segments it into chapters
// and sections, and feeds validated sections into the relational store and
// the vector index.
package regparser

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/dataguard/compliguard/internal/chunker"
	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/store"
	"github.com/dataguard/compliguard/internal/vectorindex"
)

var (
	chapterPattern = regexp.MustCompile(`(?i)^CHAPTER\s+[IVXLC]+(?:\s+[A-Z\s]+)?`)

	// Heading identifiers accept decimal, lettered, uppercase, roman and
	// bracketed forms; alternation order is deliberate and first match wins.
	sectionPattern = regexp.MustCompile(`(?i)^(Section|Schedule)\s+(\d+\.\d*|[a-z]+\)|[A-Z]+|[IVXLC]+|[0-9]+(?:\([a-zA-Z0-9]+\))*)(?:\.)?\s*(.*)$`)

	// Individual alternatives, used only to flag ambiguous identifiers.
	identAlternatives = []*regexp.Regexp{
		regexp.MustCompile(`^\d+\.\d*$`),
		regexp.MustCompile(`(?i)^[a-z]+\)$`),
		regexp.MustCompile(`^[A-Z]+$`),
		regexp.MustCompile(`^[IVXLC]+$`),
		regexp.MustCompile(`^[0-9]+(?:\([a-zA-Z0-9]+\))*$`),
	}
)

// SectionStore persists dpdp_act rows.
type SectionStore interface {
	InsertSection(sec store.RegulatorySection) (int64, error)
}

// Indexer batches embeddings into a vector index namespace.
type Indexer interface {
	Index(ctx context.Context, namespace string, records []vectorindex.Record) error
}

type Parser struct {
	log      *logger.Logger
	store    SectionStore
	index    Indexer
	splitter *chunker.Splitter
}

func New(log *logger.Logger, sectionStore SectionStore, index Indexer, splitter *chunker.Splitter) *Parser {
	return &Parser{
		log:      log.With("service", "RegulatoryParser"),
		store:    sectionStore,
		index:    index,
		splitter: splitter,
	}
}

// section accumulates one in-progress heading and its content lines.
type section struct {
	number  string
	title   string
	chapter string
	content []string
}

func (s *section) valid() bool {
	return s != nil && s.number != "" && strings.TrimSpace(strings.Join(s.content, "\n")) != ""
}

// ParseFile walks the Act line by line, emitting each validated section into
// the store and queueing its vectors. All queued vectors are embedded and
// upserted in one batched call after the whole file is consumed. Returns the
// number of sections emitted.
func (p *Parser) ParseFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("regulatory text %s: %w", path, errs.ErrNotFound)
		}
		return 0, fmt.Errorf("open regulatory text %s: %w", path, err)
	}
	defer f.Close()
	p.log.Info("Parsing regulatory text", "path", path)

	currentChapter := "Unknown"
	var current *section
	var queued []vectorindex.Record
	emitted := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if chapterPattern.MatchString(line) {
			currentChapter = titleCase(line)
			continue
		}

		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				records, err := p.emit(current, &emitted)
				if err != nil {
					return 0, err
				}
				queued = append(queued, records...)
			}
			ident := m[2]
			if matchesMultipleAlternatives(ident) {
				p.log.Warn("Ambiguous section identifier, using first alternation match", "line", line)
			}
			current = &section{
				number:  titleCase(m[1] + " " + ident),
				title:   titleCase(strings.TrimSpace(m[3])),
				chapter: currentChapter,
			}
			continue
		}

		if current != nil {
			current.chapter = currentChapter
			current.content = append(current.content, line)
		}
		// Lines before the first heading are preamble and are discarded.
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read regulatory text %s: %w", path, err)
	}

	if current != nil {
		records, err := p.emit(current, &emitted)
		if err != nil {
			return 0, err
		}
		queued = append(queued, records...)
	}

	if emitted == 0 {
		return 0, fmt.Errorf("regulatory text %s produced no sections: %w", path, errs.ErrEmptyContent)
	}

	if err := p.index.Index(ctx, vectorindex.NamespaceRegulation, queued); err != nil {
		return 0, fmt.Errorf("index regulatory sections: %w", err)
	}
	p.log.Info("Regulatory ingestion complete", "sections", emitted, "vectors", len(queued))
	return emitted, nil
}

// emit persists one validated section (full row plus chunk rows) and returns
// its queued vector records. Invalid sections are dropped silently except
// for a debug line.
func (p *Parser) emit(sec *section, emitted *int) ([]vectorindex.Record, error) {
	if !sec.valid() {
		p.log.Debug("Dropping section without content", "section_number", sec.number)
		return nil, nil
	}
	content := strings.Join(sec.content, "\n")

	if _, err := p.store.InsertSection(store.RegulatorySection{
		SectionNumber: sec.number,
		SectionTitle:  sec.title,
		Chapter:       sec.chapter,
		Content:       content,
		IsChunk:       false,
	}); err != nil {
		return nil, err
	}

	chunks, err := p.splitter.Split(content)
	if err != nil {
		return nil, fmt.Errorf("chunk section %s: %w", sec.number, err)
	}

	records := make([]vectorindex.Record, 0, len(chunks)+1)
	// The full-content record is the one retrieval keeps: it alone carries
	// the content metadata field the workflow filter requires.
	records = append(records, vectorindex.Record{
		ID:   sec.number,
		Text: content,
		Metadata: map[string]any{
			"section_number": sec.number,
			"title":          sec.title,
			"chapter":        sec.chapter,
			"content":        content,
		},
	})

	for i, chunk := range chunks {
		chunkIndex := i + 1
		if _, err := p.store.InsertSection(store.RegulatorySection{
			SectionNumber: sec.number,
			SectionTitle:  sec.title,
			Chapter:       sec.chapter,
			Content:       chunk,
			IsChunk:       true,
			ChunkIndex:    &chunkIndex,
		}); err != nil {
			return nil, err
		}
		chunkID := fmt.Sprintf("%s%d_%s", vectorindex.ChunkPrefix, chunkIndex, sec.number)
		records = append(records, vectorindex.Record{
			ID:   chunkID,
			Text: chunk,
			Metadata: map[string]any{
				"section_number": chunkID,
				"chapter":        sec.chapter,
				"chunk_index":    chunkIndex,
			},
		})
	}

	*emitted++
	p.log.Debug("Emitted section", "section_number", sec.number, "chunks", len(chunks))
	return records, nil
}

func matchesMultipleAlternatives(ident string) bool {
	hits := 0
	for _, re := range identAlternatives {
		if re.MatchString(ident) {
			hits++
		}
	}
	return hits > 1
}

// titleCase normalizes headings the way the stored records expect:
// first letter of each word upper, rest lower.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	startOfWord := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			startOfWord = true
			b.WriteRune(r)
		case startOfWord:
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
