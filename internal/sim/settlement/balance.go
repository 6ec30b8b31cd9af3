package settlement

// Balance constants. Rates are per tick unless noted; a tick is a quarter
// day, so a villager forages roughly half a unit of food per clear spring day.

var seasonFoodMult = [4]float64{
	Spring: 1.2,
	Summer: 1.3,
	Autumn: 1.0,
	Winter: 0.25,
}

var seasonBirthMult = [4]float64{
	Spring: 1.3,
	Summer: 1.1,
	Autumn: 1.0,
	Winter: 0.6,
}

var seasonRaidMult = [4]float64{
	Spring: 1.0,
	Summer: 1.1,
	Autumn: 1.3,
	Winter: 0.5,
}

type weatherBand struct {
	weather Weather
	weight  float64
}

// weatherBands drives the once-per-day weather roll. Weights per season sum
// to 1 so a single Float01 draw walks the band.
var weatherBands = [4][]weatherBand{
	Spring: {
		{WeatherClear, 0.35},
		{WeatherRain, 0.35},
		{WeatherFog, 0.15},
		{WeatherStorm, 0.15},
	},
	Summer: {
		{WeatherClear, 0.50},
		{WeatherRain, 0.20},
		{WeatherDrought, 0.15},
		{WeatherStorm, 0.15},
	},
	Autumn: {
		{WeatherClear, 0.40},
		{WeatherRain, 0.30},
		{WeatherFog, 0.20},
		{WeatherStorm, 0.10},
	},
	Winter: {
		{WeatherSnow, 0.45},
		{WeatherFrost, 0.25},
		{WeatherClear, 0.20},
		{WeatherStorm, 0.10},
	},
}

func weatherFoodMult(w Weather) float64 {
	switch w {
	case WeatherRain:
		return 1.1
	case WeatherStorm:
		return 0.7
	case WeatherDrought:
		return 0.5
	case WeatherSnow:
		return 0.4
	case WeatherFrost:
		return 0.5
	case WeatherFog:
		return 0.9
	}
	return 1.0
}

func weatherWaterMult(w Weather) float64 {
	if w == WeatherDrought {
		return 0.4
	}
	return 1.0
}

// Baseline per-villager foraging; structures add on top of this.
const (
	forageFreshPerPop    = 0.16
	forageWaterPerPop    = 0.10
	forageFirewoodPerPop = 0.08
	forageGrainPerPop    = 0.08 // autumn only, the grain laying
	forageWoodPerPop     = 0.02
)

const (
	consumeFoodPerPop         = 0.10
	consumeWaterPerPop        = 0.05
	consumeFirewoodWinterPop  = 0.10
	consumeFirewoodMildPerPop = 0.01
)

// Shortfall penalties scale with the unmet fraction of demand.
const (
	foodShortHealth = 1.2
	foodShortPanic  = 2.0

	waterShortHealth = 1.0
	waterShortPanic  = 1.5

	// Cold hearths hurt year round; in winter the penalty is an order of
	// magnitude harsher.
	firewoodShortHealth     = 2.0
	firewoodShortPanic      = 3.0
	firewoodShortMildHealth = 0.2
	firewoodShortMildPanic  = 0.3
)

const (
	farmerFoodBonus    = 0.04
	farmerFoodBonusCap = 1.6

	scientistKnowledge = 0.01
	scienceBaseRate    = 0.002
	scholarsHallBonus  = 0.5
)

const (
	threatBaseChance    = 0.0015
	threatChanceCap     = 0.01
	threatEscalate      = 0.02
	threatStrikeChance  = 0.05
	defenseCap          = 0.80
	guardDefense        = 0.05
	raidRepelThreshold  = 0.30
	raidRepelledLoss    = 0.03
	raidLootFraction    = 0.30
	raidLootCap         = 0.50
	raidDamageBase      = 0.40
	guardOverwatchRatio = 0.20
)

const (
	birthBaseChance  = 0.01
	deathHealthFloor = 20.0
	deathBaseChance  = 0.03
	birthHealthFloor = 30.0
)
