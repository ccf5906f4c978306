package expander

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slaug/slaug/internal/format"
	"github.com/slaug/slaug/internal/trigger"
	"github.com/slaug/slaug/internal/v1"
)

// Resolver is the slice of the remote client the expander needs.
type Resolver interface {
	LookupByField(ctx context.Context, assetType, field, value string) (*v1.Record, error)
	Search(ctx context.Context, req v1.SearchRequest) ([]v1.Record, int, error)
}

// Registry resolves type codes and supplies search number fields.
type Registry interface {
	Lookup(code string) (string, bool)
	NumberFields() []string
}

// Deduper is the recently-announced suppression set.
type Deduper interface {
	Suppressed(key, scope string) bool
	Remember(key, scope string)
}

// JournalEntry records one announced asset for the optional expansion journal.
type JournalEntry struct {
	AssetID string
	Number  string
	Channel string
	Source  string
}

type Journal interface {
	RecordExpansion(ctx context.Context, entry JournalEntry) error
}

// Service turns an incoming message into a formatted response: it extracts
// references, resolves them concurrently against the remote system, and joins
// the surviving lines in extraction order.
type Service struct {
	registry   Registry
	dedup      Deduper
	client     Resolver
	formatter  *format.Formatter
	journal    Journal
	logger     *slog.Logger
	perChannel bool
}

func New(registry Registry, dedup Deduper, client Resolver, formatter *format.Formatter, logger *slog.Logger) *Service {
	return &Service{
		registry:  registry,
		dedup:     dedup,
		client:    client,
		formatter: formatter,
		logger:    logger,
	}
}

// SetJournal attaches the optional expansion journal.
func (s *Service) SetJournal(journal Journal) {
	s.journal = journal
}

// SetPerChannel scopes dedup keys by originating channel.
func (s *Service) SetPerChannel(enabled bool) {
	s.perChannel = enabled
}

// Expand resolves every reference in text and returns the joined response,
// or the empty string when there is nothing to say. All references resolve
// concurrently; one reference's failure never suppresses its siblings, and
// the output preserves the left-to-right order of the matches.
func (s *Service) Expand(ctx context.Context, text, channel, source string) string {
	triggers := trigger.Extract(text)
	if len(triggers) == 0 {
		return ""
	}

	scope := ""
	if s.perChannel {
		scope = channel
	}

	lines := make([]string, len(triggers))
	var wg sync.WaitGroup
	for index, trig := range triggers {
		wg.Add(1)
		go func(index int, trig trigger.Trigger) {
			defer wg.Done()
			line, err := s.resolve(ctx, trig, scope, channel, source)
			if err != nil {
				s.logger.Error("reference resolution failed", "raw", trig.Raw, "error", err)
				return
			}
			lines[index] = line
		}(index, trig)
	}
	wg.Wait()

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func (s *Service) resolve(ctx context.Context, trig trigger.Trigger, scope, channel, source string) (string, error) {
	if trig.Kind == trigger.KindSearch {
		return s.search(ctx, trig)
	}

	// Cheap short-circuit on the raw matched text before any remote call.
	if s.dedup.Suppressed(trig.Raw, scope) {
		return "", nil
	}

	token, ok := s.registry.Lookup(trig.TypeCode)
	if !ok {
		return "", nil
	}

	var field, value string
	switch trig.Kind {
	case trigger.KindNumber:
		field, value = v1.FieldNumber, trig.Number
	case trigger.KindID:
		field, value = v1.FieldID, token+":"+trig.ID
	}

	record, err := s.client.LookupByField(ctx, token, field, value)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}

	// The canonical id may differ from the matched text, so check again
	// post-resolution. A suppressed asset is not re-remembered.
	if s.dedup.Suppressed(record.ID, scope) || s.dedup.Suppressed(record.Number, scope) {
		return "", nil
	}
	s.dedup.Remember(record.ID, scope)
	s.dedup.Remember(record.Number, scope)
	s.recordExpansion(ctx, record, channel, source)

	return s.formatter.Asset(record), nil
}

func (s *Service) search(ctx context.Context, trig trigger.Trigger) (string, error) {
	records, total, err := s.client.Search(ctx, v1.SearchRequest{
		Query:        trig.Query,
		PageSize:     trig.Options.PageSize,
		OpenOnly:     trig.Options.OpenOnly,
		ClosedOnly:   trig.Options.ClosedOnly,
		NumberFields: s.registry.NumberFields(),
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return fmt.Sprintf("Nothing found for *%s*", format.Escape(trig.Query)), nil
	}

	lines := make([]string, 0, len(records)+1)
	for index := range records {
		lines = append(lines, s.formatter.Asset(&records[index]))
	}
	if total > len(records) {
		lines = append(lines, s.formatter.Search(trig.Query))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) recordExpansion(ctx context.Context, record *v1.Record, channel, source string) {
	if s.journal == nil {
		return
	}
	err := s.journal.RecordExpansion(ctx, JournalEntry{
		AssetID: record.ID,
		Number:  record.Number,
		Channel: channel,
		Source:  source,
	})
	if err != nil {
		s.logger.Warn("expansion journal write failed", "asset_id", record.ID, "error", err)
	}
}
