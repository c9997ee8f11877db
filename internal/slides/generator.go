package slides

import (
	"context"
	"fmt"
	"log"
	"os"

	"papervid/internal/config"
	"papervid/internal/llm"
	"papervid/internal/prompts"
	"papervid/internal/storage"
	"papervid/internal/types"
)

// Generator turns a markdown document into a validated slide deck through
// one text-completion call. With the offline fallback mode enabled a failed
// or unconfigured completion degrades to a deterministic outline deck; with
// it disabled (the default) any failure rejects the stage.
type Generator struct {
	completer       llm.Completer
	offlineFallback bool
}

func NewGenerator(completer llm.Completer, cfg config.SlidesConfig) *Generator {
	return &Generator{completer: completer, offlineFallback: cfg.OfflineFallback}
}

func (g *Generator) Generate(ctx context.Context, markdown string, jobCfg types.JobConfig, imageMapping map[string]string) (*types.SlidesJSON, error) {
	deck, err := g.requestFromLLM(ctx, markdown, jobCfg)
	if err != nil {
		if !g.offlineFallback {
			return nil, err
		}
		log.Printf("[generating] LLM summary failed, offline fallback used: %v", err)
		deck = OutlineDeck(markdown, jobCfg.OutputLanguage)
	}

	restoreImagePaths(deck, imageMapping)
	return deck, nil
}

func (g *Generator) requestFromLLM(ctx context.Context, markdown string, jobCfg types.JobConfig) (*types.SlidesJSON, error) {
	if g.completer == nil {
		return nil, fmt.Errorf("no text-completion provider configured")
	}

	template, err := prompts.Get("generating.md")
	if err != nil {
		return nil, err
	}
	system := prompts.Render(template, map[string]string{
		"languageHint": prompts.LanguageHint(jobCfg.OutputLanguage),
	})

	response, err := g.completer.Complete(ctx, llm.Request{
		Model:        jobCfg.Model,
		SystemPrompt: system,
		UserPrompt:   markdown,
	})
	if err != nil {
		return nil, fmt.Errorf("generate slides: %w", err)
	}

	deck, err := Normalize([]byte(ExtractJSON(response)))
	if err != nil {
		return nil, fmt.Errorf("generate slides: %w", err)
	}
	return deck, nil
}

// restoreImagePaths swaps the figure file names the model echoed back for
// the paths the conversion stage actually extracted them to.
func restoreImagePaths(deck *types.SlidesJSON, mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	for si := range deck.Slides {
		for ii := range deck.Slides[si].Images {
			img := &deck.Slides[si].Images[ii]
			if restored, ok := mapping[img.Path]; ok {
				img.Path = restored
			}
		}
	}
}

// LoadImageMapping reads the figure-name to extracted-path mapping written
// by the parsing stage. A missing mapping is an empty one, not an error.
func LoadImageMapping(path string) map[string]string {
	mapping := map[string]string{}
	if err := storage.ReadJSON(path, &mapping); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[generating] ignoring unreadable image mapping: %v", err)
		}
		return map[string]string{}
	}
	return mapping
}
