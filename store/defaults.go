package store

import "crs-prediction-api/models"

// DefaultPoolStats are published IRCC pool estimates, used until the store
// has its own distribution.
func DefaultPoolStats() map[int]models.PoolDistribution {
	return map[int]models.PoolDistribution{
		2024: {
			Year: 2024, TotalPool: 218000, AvgScore: 492,
			Distribution: map[string]int{
				"601-1200": 4200, "501-600": 32700, "451-500": 76300,
				"401-450": 65400, "351-400": 26100, "0-350": 13300,
			},
		},
		2025: {
			Year: 2025, TotalPool: 228000, AvgScore: 489,
			Distribution: map[string]int{
				"601-1200": 4500, "501-600": 34200, "451-500": 79800,
				"401-450": 68400, "351-400": 27360, "0-350": 13740,
			},
		},
		2026: {
			Year: 2026, TotalPool: 235000, AvgScore: 486,
			Distribution: map[string]int{
				"601-1200": 4700, "501-600": 35250, "451-500": 82250,
				"401-450": 70500, "351-400": 28200, "0-350": 14100,
			},
		},
	}
}

// DefaultTargets is the 2024-2027 immigration levels plan.
func DefaultTargets() []models.ImmigrationTarget {
	return []models.ImmigrationTarget{
		{Year: 2024, Total: 485000, Economic: 281135, ExpressEntry: 110770, PNP: 110000, Family: 114000, Refugee: 76115},
		{Year: 2025, Total: 395000, Economic: 232000, ExpressEntry: 124000, PNP: 82000, Family: 84000, Refugee: 52000},
		{Year: 2026, Total: 380000, Economic: 220000, ExpressEntry: 118000, PNP: 79000, Family: 82000, Refugee: 50500},
		{Year: 2027, Total: 365000, Economic: 209000, ExpressEntry: 112000, PNP: 76000, Family: 80000, Refugee: 48500},
	}
}
