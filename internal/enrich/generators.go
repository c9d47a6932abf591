package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/ai"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Completer issues a chat completion.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// RawFetcher downloads a definition file from the raw-content mirror.
type RawFetcher interface {
	FetchRaw(ctx context.Context, rawURL string) ([]byte, error)
}

// DescriptionStore persists descriptions.
type DescriptionStore interface {
	UpsertDescription(ctx context.Context, a *models.DescriptionArtifact) error
}

// SEOStore persists SEO metadata and reads descriptions for context.
type SEOStore interface {
	UpsertSEO(ctx context.Context, a *models.SEOArtifact) error
	GetDescription(ctx context.Context, workflowID string) (*models.DescriptionArtifact, error)
}

// EmbeddingStore persists embeddings and reads descriptions for context.
type EmbeddingStore interface {
	UpsertEmbedding(ctx context.Context, a *models.EmbeddingArtifact) error
	GetDescription(ctx context.Context, workflowID string) (*models.DescriptionArtifact, error)
}

// SEO field limits.
const (
	MaxMetaTitle       = 60
	MaxMetaDescription = 160
)

const descriptionSystemPrompt = `You write documentation for automation workflows.
Answer with a single JSON object and nothing else:
{"description": string, "use_cases": [string], "setup_steps": [string]}`

const seoSystemPrompt = `You write search-engine metadata for automation workflow pages.
Answer with a single JSON object and nothing else:
{"meta_title": string (max 60 characters), "meta_description": string (max 160 characters), "keywords": [string]}`

// DescriptionGenerator writes natural-language descriptions from the entry
// metadata and the raw workflow JSON.
type DescriptionGenerator struct {
	chat       Completer
	store      DescriptionStore
	raw        RawFetcher
	maxContext int
	logger     Logger
	now        func() time.Time
}

// NewDescriptionGenerator creates a DescriptionGenerator. A nil chat makes the
// generator report ErrNotConfigured. raw may be nil, in which case prompts
// carry metadata only.
func NewDescriptionGenerator(chat Completer, store DescriptionStore, raw RawFetcher, maxContext int, logger Logger) *DescriptionGenerator {
	return &DescriptionGenerator{chat: chat, store: store, raw: raw, maxContext: maxContext, logger: logger, now: time.Now}
}

func (g *DescriptionGenerator) Kind() models.ArtifactKind { return models.ArtifactDescription }

func (g *DescriptionGenerator) Ready() error {
	if g.chat == nil {
		return fmt.Errorf("%w: description generation needs ai.base_url, ai.api_key and ai.chat_model", ErrNotConfigured)
	}
	return nil
}

type descriptionFields struct {
	Description string   `json:"description"`
	UseCases    []string `json:"use_cases"`
	SetupSteps  []string `json:"setup_steps"`
}

func (g *DescriptionGenerator) Generate(ctx context.Context, entry models.CatalogEntry) (*models.DescriptionArtifact, models.Quality, error) {
	prompt := metadataPrompt(entry)
	if definition := g.definition(ctx, entry); definition != "" {
		prompt += "\nWorkflow JSON:\n" + definition
	}

	content, err := g.chat.Complete(ctx, descriptionSystemPrompt, prompt)
	if err != nil {
		return nil, "", err
	}

	parsed, err := ai.ParseResponse(content,
		func(f descriptionFields) bool { return strings.TrimSpace(f.Description) != "" },
		descriptionHeuristic,
	)
	if err != nil {
		return nil, "", err
	}
	return &models.DescriptionArtifact{
		WorkflowID:  entry.ID,
		Description: strings.TrimSpace(parsed.Value.Description),
		UseCases:    parsed.Value.UseCases,
		SetupSteps:  parsed.Value.SetupSteps,
		Quality:     parsed.Quality,
		Model:       g.chat.Model(),
		GeneratedAt: g.now().UTC(),
	}, parsed.Quality, nil
}

func (g *DescriptionGenerator) Persist(ctx context.Context, a *models.DescriptionArtifact) error {
	return g.store.UpsertDescription(ctx, a)
}

// definition returns the raw workflow JSON, cut to maxContext bytes. A failed
// download degrades to a metadata-only prompt.
func (g *DescriptionGenerator) definition(ctx context.Context, entry models.CatalogEntry) string {
	if g.raw == nil || entry.RawURL == "" {
		return ""
	}
	data, err := g.raw.FetchRaw(ctx, entry.RawURL)
	if err != nil {
		g.logger.Warn("workflow json unavailable, describing from metadata only", "slug", entry.Slug, "error", err)
		return ""
	}
	if g.maxContext > 0 && len(data) > g.maxContext {
		data = data[:g.maxContext]
	}
	return string(data)
}

// descriptionHeuristic takes the first paragraph as the description and any
// list items as use cases.
func descriptionHeuristic(text string) (descriptionFields, bool) {
	description := leadParagraph(ai.Paragraphs(text))
	if description == "" {
		return descriptionFields{}, false
	}
	return descriptionFields{
		Description: description,
		UseCases:    ai.ListItems(text),
	}, true
}

// leadParagraph returns the first paragraph with text left after headings
// and labels are removed, collapsed onto one line.
func leadParagraph(paras []string) string {
	for _, p := range paras {
		var kept []string
		for _, line := range strings.Split(p, "\n") {
			if len(kept) == 0 && isHeading(line) {
				continue
			}
			kept = append(kept, line)
		}
		text := strings.Join(strings.Fields(stripLabel(strings.Join(kept, " "))), " ")
		if text != "" {
			return text
		}
	}
	return ""
}

// isHeading reports whether line is a markdown heading or a bare label such
// as "**Description:**".
func isHeading(line string) bool {
	t := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*_\""))
	return t == "" || strings.HasPrefix(t, "#") || strings.HasSuffix(t, ":")
}

// SEOGenerator writes page titles, meta descriptions and keywords.
type SEOGenerator struct {
	chat   Completer
	store  SEOStore
	logger Logger
	now    func() time.Time
}

// NewSEOGenerator creates an SEOGenerator. A nil chat makes the generator
// report ErrNotConfigured.
func NewSEOGenerator(chat Completer, store SEOStore, logger Logger) *SEOGenerator {
	return &SEOGenerator{chat: chat, store: store, logger: logger, now: time.Now}
}

func (g *SEOGenerator) Kind() models.ArtifactKind { return models.ArtifactSEO }

func (g *SEOGenerator) Ready() error {
	if g.chat == nil {
		return fmt.Errorf("%w: SEO generation needs ai.base_url, ai.api_key and ai.chat_model", ErrNotConfigured)
	}
	return nil
}

type seoFields struct {
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
}

func (g *SEOGenerator) Generate(ctx context.Context, entry models.CatalogEntry) (*models.SEOArtifact, models.Quality, error) {
	prompt := metadataPrompt(entry)
	if d := existingDescription(ctx, g.store, entry, g.logger); d != "" {
		prompt += "\nDescription: " + d
	}

	content, err := g.chat.Complete(ctx, seoSystemPrompt, prompt)
	if err != nil {
		return nil, "", err
	}

	parsed, err := ai.ParseResponse(content,
		func(f seoFields) bool {
			return strings.TrimSpace(f.MetaTitle) != "" && strings.TrimSpace(f.MetaDescription) != ""
		},
		func(text string) (seoFields, bool) { return seoHeuristic(entry, text) },
	)
	if err != nil {
		return nil, "", err
	}

	keywords := parsed.Value.Keywords
	if len(keywords) == 0 {
		keywords = defaultKeywords(entry)
	}
	return &models.SEOArtifact{
		WorkflowID:      entry.ID,
		MetaTitle:       ai.Truncate(parsed.Value.MetaTitle, MaxMetaTitle),
		MetaDescription: ai.Truncate(parsed.Value.MetaDescription, MaxMetaDescription),
		Keywords:        keywords,
		Quality:         parsed.Quality,
		Model:           g.chat.Model(),
		GeneratedAt:     g.now().UTC(),
	}, parsed.Quality, nil
}

func (g *SEOGenerator) Persist(ctx context.Context, a *models.SEOArtifact) error {
	return g.store.UpsertSEO(ctx, a)
}

// seoHeuristic uses a short first line as the title and the following text
// as the description, filling gaps from the entry itself.
func seoHeuristic(entry models.CatalogEntry, text string) (seoFields, bool) {
	paras := ai.Paragraphs(text)
	if len(paras) == 0 {
		return seoFields{}, false
	}

	var f seoFields
	lines := strings.Split(paras[0], "\n")
	if title := stripLabel(lines[0]); len(lines[0]) <= 2*MaxMetaTitle && title != "" {
		f.MetaTitle = title
		rest := strings.Join(append(lines[1:], paras[1:]...), " ")
		f.MetaDescription = stripLabel(rest)
	} else {
		f.MetaDescription = strings.Join(paras, " ")
	}
	if f.MetaTitle == "" {
		f.MetaTitle = fmt.Sprintf("%s | %s Workflow", entry.Name, entry.Category)
	}
	if strings.TrimSpace(f.MetaDescription) == "" {
		f.MetaDescription = fmt.Sprintf("%s: a %s %s automation workflow with %d nodes.",
			entry.Name, strings.ToLower(string(entry.Complexity)), entry.Category, entry.NodeCount)
	}
	return f, true
}

func stripLabel(s string) string {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "#*\""))
	for _, label := range []string{"meta title:", "title:", "meta description:", "description:"} {
		if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
			return strings.TrimSpace(s[len(label):])
		}
	}
	return s
}

func defaultKeywords(entry models.CatalogEntry) []string {
	keywords := append([]string{strings.ToLower(entry.Category)}, entry.Tags...)
	return append(keywords, "automation", "workflow")
}

// EmbeddingGenerator stores the vector of a text rendering of each entry.
type EmbeddingGenerator struct {
	embedder ai.Embedder
	store    EmbeddingStore
	logger   Logger
	now      func() time.Time
}

// NewEmbeddingGenerator creates an EmbeddingGenerator. A nil embedder makes
// the generator report ErrNotConfigured.
func NewEmbeddingGenerator(embedder ai.Embedder, store EmbeddingStore, logger Logger) *EmbeddingGenerator {
	return &EmbeddingGenerator{embedder: embedder, store: store, logger: logger, now: time.Now}
}

func (g *EmbeddingGenerator) Kind() models.ArtifactKind { return models.ArtifactEmbedding }

func (g *EmbeddingGenerator) Ready() error {
	if g.embedder == nil {
		return fmt.Errorf("%w: embedding generation needs ai.embedding settings", ErrNotConfigured)
	}
	return nil
}

func (g *EmbeddingGenerator) Generate(ctx context.Context, entry models.CatalogEntry) (*models.EmbeddingArtifact, models.Quality, error) {
	text := EmbeddingText(entry, existingDescription(ctx, g.store, entry, g.logger))
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, "", err
	}
	return &models.EmbeddingArtifact{
		WorkflowID:  entry.ID,
		Vector:      vec,
		Model:       g.embedder.Model(),
		GeneratedAt: g.now().UTC(),
	}, "", nil
}

func (g *EmbeddingGenerator) Persist(ctx context.Context, a *models.EmbeddingArtifact) error {
	return g.store.UpsertEmbedding(ctx, a)
}

// EmbeddingText renders the fields of an entry that carry meaning for search.
func EmbeddingText(entry models.CatalogEntry, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nCategory: %s\nComplexity: %s\n", entry.Name, entry.Category, entry.Complexity)
	if len(entry.Tags) > 0 {
		fmt.Fprintf(&b, "Integrations: %s\n", strings.Join(entry.Tags, ", "))
	}
	if description != "" {
		b.WriteString(description)
	}
	return strings.TrimSpace(b.String())
}

func metadataPrompt(entry models.CatalogEntry) string {
	credentials := "no"
	if entry.HasCredentials {
		credentials = "yes"
	}
	return fmt.Sprintf("Name: %s\nCategory: %s\nNodes: %d\nRequires credentials: %s\nComplexity: %s\nTags: %s\n",
		entry.Name, entry.Category, entry.NodeCount, credentials, entry.Complexity, strings.Join(entry.Tags, ", "))
}

type descriptionReader interface {
	GetDescription(ctx context.Context, workflowID string) (*models.DescriptionArtifact, error)
}

func existingDescription(ctx context.Context, store descriptionReader, entry models.CatalogEntry, logger Logger) string {
	d, err := store.GetDescription(ctx, entry.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("failed to read description", "slug", entry.Slug, "error", err)
		}
		return ""
	}
	return d.Description
}
