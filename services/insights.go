package services

import (
	"fmt"
	"sort"
	"strings"

	"rent-radar/models"
	"rent-radar/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByCity: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	report.MinRent = listings[0].Rent
	report.MaxRent = listings[0].Rent
	report.MostExpensive = listings[0]

	var totalRent, totalSize, totalPerSqm float64
	var sized []*models.Listing

	for _, l := range listings {
		totalRent += l.Rent
		totalSize += l.Size
		if l.Rent < report.MinRent {
			report.MinRent = l.Rent
		}
		if l.Rent > report.MaxRent {
			report.MaxRent = l.Rent
			report.MostExpensive = l
		}
		if l.Size > 0 {
			totalPerSqm += l.RentPerSqm()
			sized = append(sized, l)
		}
		if l.City != "" {
			report.ListingsByCity[l.City]++
		}
	}

	n := float64(len(listings))
	report.AverageRent = round2(totalRent / n)
	report.AverageSize = round2(totalSize / n)
	report.MinRent = round2(report.MinRent)
	report.MaxRent = round2(report.MaxRent)
	if len(sized) > 0 {
		report.AverageRentPerSqm = round2(totalPerSqm / float64(len(sized)))
	}

	// Top 5 cheapest per m²
	sort.SliceStable(sized, func(i, j int) bool {
		return sized[i].RentPerSqm() < sized[j].RentPerSqm()
	})
	if len(sized) > 5 {
		sized = sized[:5]
	}
	report.CheapestPerSqm = sized

	s.logger.Debug("[insights] Report over %d listings in %d cities", report.TotalListings, len(report.ListingsByCity))
	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 RENT MARKET INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Cleaned listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  Average size     : \033[1m%.2f m²\033[0m\n", r.AverageSize)
	fmt.Println()

	fmt.Printf("\033[1;33m  Rent Statistics (per month)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.TotalListings > 0 {
		fmt.Printf("  Average rent   : \033[1;32m%.2f €\033[0m\n", r.AverageRent)
		fmt.Printf("  Minimum rent   : \033[1;32m%.2f €\033[0m\n", r.MinRent)
		fmt.Printf("  Maximum rent   : \033[1;32m%.2f €\033[0m\n", r.MaxRent)
		fmt.Printf("  Average per m² : \033[1;32m%.2f €\033[0m\n", r.AverageRentPerSqm)
	} else {
		fmt.Printf("  No rent data available\n")
	}
	fmt.Println()

	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Printf("  City : %s\n", r.MostExpensive.City)
		fmt.Printf("  Rent : \033[1;31m%.2f € for %.0f m²\033[0m\n", r.MostExpensive.Rent, r.MostExpensive.Size)
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Top 5 Cheapest per m²\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.CheapestPerSqm) == 0 {
		fmt.Printf("  No sized listings found\n")
	} else {
		for i, l := range r.CheapestPerSqm {
			label := truncate(l.City+" · "+l.Title, 38)
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%.2f €/m²\033[0m\n",
				i+1, label, l.RentPerSqm())
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Listings by City\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ListingsByCity) == 0 {
		fmt.Printf("  No city data\n")
	} else {
		type cityCount struct {
			city  string
			count int
		}
		var cities []cityCount
		for city, cnt := range r.ListingsByCity {
			cities = append(cities, cityCount{city, cnt})
		}
		sort.Slice(cities, func(i, j int) bool {
			if cities[i].count != cities[j].count {
				return cities[i].count > cities[j].count
			}
			return cities[i].city < cities[j].city
		})
		maxCount := cities[0].count
		for _, cc := range cities {
			// bars are scaled to 30 cells so thousands of rows still fit
			width := cc.count * 30 / maxCount
			if width == 0 {
				width = 1
			}
			fmt.Printf("  %-20s %s (%d)\n", truncate(cc.city, 18), strings.Repeat("█", width), cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
