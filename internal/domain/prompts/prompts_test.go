package prompts

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDaily(t *testing.T) {
	p := Daily("fox", "crown", "anime")

	assert.Equal(t, []string{"fox"}, p.Animals)
	assert.Equal(t, []string{"crown"}, p.Accessories)
	assert.Contains(t, p.Text, "3D plush fox")
	assert.Contains(t, p.Text, "Accessory: crown.")
	assert.Contains(t, p.Text, "Style: anime.")
}

func TestFusion(t *testing.T) {
	tests := []struct {
		name            string
		animal1         string
		animal2         string
		acc1            []string
		acc2            []string
		wantAnimals     []string
		wantAccessories []string
	}{
		{
			name:            "union keeps first-seen order",
			animal1:         "cat",
			animal2:         "owl",
			acc1:            []string{"hat", "bell"},
			acc2:            []string{"bell", "halo"},
			wantAnimals:     []string{"cat", "owl"},
			wantAccessories: []string{"hat", "bell", "halo"},
		},
		{
			name:            "missing subject falls back",
			animal1:         "",
			animal2:         "panda",
			acc1:            nil,
			acc2:            []string{"star"},
			wantAnimals:     []string{"creature", "panda"},
			wantAccessories: []string{"star"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Fusion(tt.animal1, tt.animal2, tt.acc1, tt.acc2, "sparkles")
			assert.Equal(t, tt.wantAnimals, p.Animals)
			assert.Equal(t, tt.wantAccessories, p.Accessories)
			assert.Contains(t, p.Text, "Rare trait: sparkles.")
		})
	}
}

func TestLegendaryConcatenatesAccessories(t *testing.T) {
	acc := []string{"hat", "hat", "wings"}
	p := Legendary("cat", "dog", "owl", acc)

	assert.Equal(t, []string{"cat", "dog", "owl"}, p.Animals)
	assert.Equal(t, []string{"hat", "hat", "wings"}, p.Accessories)
	assert.Contains(t, p.Text, "merging cat, dog, and owl")

	acc[0] = "mutated"
	assert.Equal(t, "hat", p.Accessories[0])
}

func TestPickerDrawsFromPools(t *testing.T) {
	p := NewSeededPicker(1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, slices.Contains(Animals, p.Animal()))
			assert.True(t, slices.Contains(Accessories, p.Accessory()))
			assert.True(t, slices.Contains(LegendaryTraits, p.LegendaryTrait()))
		}()
	}
	wg.Wait()
}

func TestSeededPickerIsDeterministic(t *testing.T) {
	a, b := NewSeededPicker(7, 9), NewSeededPicker(7, 9)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Animal(), b.Animal())
	}
}

func TestFirstAnimal(t *testing.T) {
	assert.Equal(t, "creature", FirstAnimal(nil))
	assert.Equal(t, "bear", FirstAnimal([]string{"bear", "cat"}))
}
