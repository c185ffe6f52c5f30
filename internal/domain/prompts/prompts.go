// Package prompts composes generation prompts for daily and fusion gifts.
package prompts

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const fallbackAnimal = "creature"

var (
	Animals = []string{
		"cat", "dog", "bunny", "bear", "panda", "fox", "owl",
		"penguin", "koala", "sloth", "hedgehog", "raccoon",
	}
	Accessories = []string{
		"bow tie", "crown", "scarf", "glasses", "hat", "flower",
		"ribbon", "bell", "star", "heart", "wings", "halo",
	}
	LegendaryTraits = []string{
		"sparkles", "rainbow aura", "crystal wings", "magical glow",
		"stardust trail", "cosmic patterns", "prismatic shine",
	}
)

type Prompt struct {
	Text        string
	Animals     []string
	Accessories []string
}

// Picker draws random tags. It is safe for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker() *Picker {
	seed := uint64(time.Now().UnixNano())
	return NewSeededPicker(seed, seed>>1)
}

func NewSeededPicker(seed1, seed2 uint64) *Picker {
	return &Picker{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (p *Picker) pick(pool []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rng.IntN(len(pool))]
}

func (p *Picker) Animal() string         { return p.pick(Animals) }
func (p *Picker) Accessory() string      { return p.pick(Accessories) }
func (p *Picker) LegendaryTrait() string { return p.pick(LegendaryTraits) }

// Daily builds the prompt for one daily candidate.
func Daily(animal, accessory, style string) Prompt {
	text := fmt.Sprintf(`Create a high-quality image of a cute 3D plush %s.
Soft fluffy texture, pastel colors, big shiny eyes.
Accessory: %s.
Style: %s.
Studio lighting, clean background, professional photography style.`, animal, accessory, style)

	return Prompt{
		Text:        text,
		Animals:     []string{animal},
		Accessories: []string{accessory},
	}
}

// Fusion builds the prompt for a two-parent fusion. Accessories are the
// de-duplicated union of both parents in first-seen order.
func Fusion(animal1, animal2 string, accessories1, accessories2 []string, trait string) Prompt {
	animal1, animal2 = orFallback(animal1), orFallback(animal2)
	union := unique(append(append([]string(nil), accessories1...), accessories2...))

	text := fmt.Sprintf(`Create a high-quality image of a plush hybrid of %s and %s, kawaii proportions, pastel colors.
Rare trait: %s.
Add floating particles + glow.
Accessories: %s.
Studio lighting, magical atmosphere, professional photography style.`, animal1, animal2, trait, strings.Join(union, ", "))

	return Prompt{
		Text:        text,
		Animals:     []string{animal1, animal2},
		Accessories: union,
	}
}

// Legendary builds the prompt for a three-parent fusion. Accessories are kept
// as given, concatenated across parents.
func Legendary(animal1, animal2, animal3 string, accessories []string) Prompt {
	animal1, animal2, animal3 = orFallback(animal1), orFallback(animal2), orFallback(animal3)

	text := fmt.Sprintf(`Create a high-quality image of a legendary plush merging %s, %s, and %s.
Golden glow, magical sparkles, levitation effect.
Kawaii style.
Accessories: %s.
Epic proportions, divine aura, studio lighting, professional photography style.`, animal1, animal2, animal3, strings.Join(accessories, ", "))

	return Prompt{
		Text:        text,
		Animals:     []string{animal1, animal2, animal3},
		Accessories: append([]string(nil), accessories...),
	}
}

// FirstAnimal returns the leading subject of a tag list, or the fallback.
func FirstAnimal(animals []string) string {
	if len(animals) == 0 {
		return fallbackAnimal
	}
	return orFallback(animals[0])
}

func orFallback(animal string) string {
	if strings.TrimSpace(animal) == "" {
		return fallbackAnimal
	}
	return animal
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
