package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hati/internal/book"
	"hati/internal/common"
	"hati/internal/feed"
)

// replay feeds a synthetic delta stream through a Feed and prints the
// resulting book state, depth and fill prices. Useful for eyeballing ladder
// behavior without a market-data connection.
func main() {
	instrument := flag.String("instrument", "AUDUSD", "Instrument identifier")
	levels := flag.Int("levels", 5, "Price levels per side")
	orders := flag.Int("orders", 3, "Orders per level")
	mid := flag.Float64("mid", 100.0, "Midpoint the synthetic book is built around")
	tick := flag.Float64("tick", 0.5, "Price increment between levels")
	depth := flag.Int("depth", 5, "Levels per side to print")
	fill := flag.Float64("fill", 10, "Volume for the fill-price query")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Seed for synthetic volumes")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	f := feed.New(log)
	rng := rand.New(rand.NewSource(*seed))

	// Build both sides around the midpoint: bids below, asks above.
	n := 0
	for lvl := 1; lvl <= *levels; lvl++ {
		offset := float64(lvl) * *tick
		for i := 0; i < *orders; i++ {
			bid := common.Order{
				ID:     uuid.New().String(),
				Price:  decimal.NewFromFloat(*mid - offset),
				Volume: decimal.NewFromInt(rng.Int63n(50) + 1),
				Side:   common.Buy,
			}
			ask := common.Order{
				ID:     uuid.New().String(),
				Price:  decimal.NewFromFloat(*mid + offset),
				Volume: decimal.NewFromInt(rng.Int63n(50) + 1),
				Side:   common.Sell,
			}
			for _, order := range []common.Order{bid, ask} {
				err := f.Submit(*instrument, common.Delta{
					Type:      common.AddDelta,
					Order:     order,
					Timestamp: time.Now(),
				})
				if err != nil {
					log.Fatal().Err(err).Msg("submit failed")
				}
				n++
			}
		}
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Msg("feed close failed")
	}
	log.Info().Int("deltas", n).Str("instrument", *instrument).Msg("replay complete")

	f.WithBook(*instrument, func(b *book.OrderBook) {
		if err := b.CheckIntegrity(); err != nil {
			log.Fatal().Err(err).Msg("book failed integrity check")
		}

		fmt.Println(b)
		snap := b.Snapshot(*depth)
		for _, level := range snap.Asks {
			log.Info().
				Stringer("price", level.Price).
				Stringer("volume", level.Volume).
				Stringer("exposure", level.Exposure).
				Msg("ask level")
		}
		for _, level := range snap.Bids {
			log.Info().
				Stringer("price", level.Price).
				Stringer("volume", level.Volume).
				Stringer("exposure", level.Exposure).
				Msg("bid level")
		}

		volume := decimal.NewFromFloat(*fill)
		for _, side := range []*book.Ladder{b.Bids(), b.Asks()} {
			price, err := side.VolumeFillPrice(volume, false)
			if err != nil {
				log.Warn().
					Err(err).
					Stringer("side", side.Side()).
					Stringer("volume", volume).
					Msg("fill price unavailable")
				continue
			}
			log.Info().
				Stringer("side", side.Side()).
				Stringer("volume", volume).
				Stringer("price", price).
				Msg("fill price")
		}
	})
}
