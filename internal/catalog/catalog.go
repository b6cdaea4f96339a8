// Package catalog holds the built-in effect definitions available to every show.
package catalog

import (
	"sort"

	"github.com/schollz/pyroshow/internal/types"
)

const (
	CategoryShell  = "shell"
	CategoryCake   = "cake"
	CategoryComet  = "comet"
	CategoryMine   = "mine"
	CategoryCandle = "candle"
)

var builtin = []types.EffectDefinition{
	{ID: "shell-peony-75", Name: "75mm Peony", Category: CategoryShell, FuseTime: 500, LiftTime: 2500, EffectDuration: 3000, Colors: []string{"#ff3b30"}, BurstDiameter: 60, MaxHeight: 75},
	{ID: "shell-chrysanthemum-100", Name: "100mm Chrysanthemum", Category: CategoryShell, FuseTime: 500, LiftTime: 3100, EffectDuration: 3500, Colors: []string{"#ffd60a", "#ffffff"}, BurstDiameter: 90, MaxHeight: 100},
	{ID: "shell-willow-125", Name: "125mm Gold Willow", Category: CategoryShell, FuseTime: 600, LiftTime: 3600, EffectDuration: 6000, Colors: []string{"#d4a017"}, BurstDiameter: 110, MaxHeight: 125},
	{ID: "shell-crossette-100", Name: "100mm Crossette", Category: CategoryShell, FuseTime: 500, LiftTime: 3100, EffectDuration: 2500, Colors: []string{"#34c759", "#ffffff"}, BurstDiameter: 85, MaxHeight: 100},
	{ID: "shell-salute-75", Name: "75mm Salute", Category: CategoryShell, FuseTime: 500, LiftTime: 2500, EffectDuration: 300, Colors: []string{"#ffffff"}, BurstDiameter: 20, MaxHeight: 75},
	{ID: "cake-fan-25", Name: "25 Shot Fan Cake", Category: CategoryCake, FuseTime: 2000, LiftTime: 1200, EffectDuration: 20000, Colors: []string{"#ff2d55", "#5ac8fa"}, BurstDiameter: 25, MaxHeight: 40},
	{ID: "cake-zipper-100", Name: "100 Shot Zipper", Category: CategoryCake, FuseTime: 2000, LiftTime: 900, EffectDuration: 12000, Colors: []string{"#af52de"}, BurstDiameter: 15, MaxHeight: 30},
	{ID: "comet-silver-30", Name: "30mm Silver Comet", Category: CategoryComet, FuseTime: 200, LiftTime: 1000, EffectDuration: 2000, Colors: []string{"#c0c0c0"}, BurstDiameter: 2, MaxHeight: 45},
	{ID: "comet-crackling-45", Name: "45mm Crackling Comet", Category: CategoryComet, FuseTime: 200, LiftTime: 1400, EffectDuration: 2500, Colors: []string{"#ffcc00"}, BurstDiameter: 4, MaxHeight: 60},
	{ID: "mine-red-50", Name: "50mm Red Mine", Category: CategoryMine, FuseTime: 300, LiftTime: 200, EffectDuration: 1500, Colors: []string{"#ff0000"}, BurstDiameter: 10, MaxHeight: 25},
	{ID: "mine-glitter-75", Name: "75mm Glitter Mine", Category: CategoryMine, FuseTime: 300, LiftTime: 250, EffectDuration: 2000, Colors: []string{"#fff8dc"}, BurstDiameter: 15, MaxHeight: 35},
	{ID: "candle-8-blue", Name: "8 Shot Blue Candle", Category: CategoryCandle, FuseTime: 1500, LiftTime: 800, EffectDuration: 8000, Colors: []string{"#007aff"}, BurstDiameter: 5, MaxHeight: 30},
}

var byID = func() map[string]types.EffectDefinition {
	m := make(map[string]types.EffectDefinition, len(builtin))
	for _, d := range builtin {
		m[d.ID] = d
	}
	return m
}()

// Lookup resolves a built-in definition.
func Lookup(id string) (types.EffectDefinition, bool) {
	d, ok := byID[id]
	if ok {
		d.Colors = append([]string(nil), d.Colors...)
	}
	return d, ok
}

// All lists the built-ins sorted by category, then name.
func All() []types.EffectDefinition {
	out := make([]types.EffectDefinition, 0, len(builtin))
	for _, d := range builtin {
		d.Colors = append([]string(nil), d.Colors...)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}
