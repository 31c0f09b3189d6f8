package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	seedDrivers   = []string{"Arun Kumar", "Priya R", "Suresh M", "Divya S", "Karthik N"}
	seedCustomers = []string{"Aavin Depot 1", "Retail Shop 23", "Wholesale Buyer X", "School Canteen", "Hospital Supply"}
	deliveryItems = []string{"Milk", "Paneer", "Butter", "Ghee"}
	saleItems     = []string{"Curd", "Lassi", "Yogurt", "Buttermilk"}
)

// SeedResult reports how many documents Seed wrote.
type SeedResult struct {
	Fleets int
	Trips  int
}

// Seed replaces the fleets and tripplanners collections with demo data:
// fleetCount fleets and tripCount trips starting on startDate, one per day.
func (s *MongoStore) Seed(ctx context.Context, fleetCount, tripCount int, startDate time.Time, rng *rand.Rand) (SeedResult, error) {
	fleets := s.db.Collection("fleets")
	trips := s.db.Collection("tripplanners")

	if _, err := fleets.DeleteMany(ctx, bson.D{}); err != nil {
		return SeedResult{}, storeError(ctx, "clear fleets", err)
	}
	if _, err := trips.DeleteMany(ctx, bson.D{}); err != nil {
		return SeedResult{}, storeError(ctx, "clear tripplanners", err)
	}

	fleetDocs, fleetIDs := BuildSeedFleets(fleetCount)
	if len(fleetDocs) > 0 {
		if _, err := fleets.InsertMany(ctx, fleetDocs); err != nil {
			return SeedResult{}, storeError(ctx, "insert fleets", err)
		}
	}

	tripDocs := BuildSeedTrips(tripCount, fleetIDs, startDate, rng)
	if len(tripDocs) > 0 {
		if _, err := trips.InsertMany(ctx, tripDocs); err != nil {
			return SeedResult{}, storeError(ctx, "insert tripplanners", err)
		}
	}

	s.logger.Info("Seeded demo data",
		zap.Int("fleets", len(fleetDocs)),
		zap.Int("trips", len(tripDocs)))
	return SeedResult{Fleets: len(fleetDocs), Trips: len(tripDocs)}, nil
}

// BuildSeedFleets returns fleet documents named "Fleet A", "Fleet B", ... and their ids.
func BuildSeedFleets(count int) ([]interface{}, []primitive.ObjectID) {
	docs := make([]interface{}, 0, count)
	ids := make([]primitive.ObjectID, 0, count)
	for i := 0; i < count; i++ {
		id := primitive.NewObjectID()
		ids = append(ids, id)
		docs = append(docs, bson.D{
			{Key: "_id", Value: id},
			{Key: "short_name", Value: fmt.Sprintf("Fleet %c", 'A'+rune(i%26))},
			{Key: "number_plate", Value: fmt.Sprintf("TN0%02dXY%d", i+1, 1000+i)},
		})
	}
	return docs, ids
}

// BuildSeedTrips returns trip documents referencing the given fleets. Delivery
// trips ("D") carry delivery order lines, sale trips ("S") carry sale lines.
func BuildSeedTrips(count int, fleetIDs []primitive.ObjectID, startDate time.Time, rng *rand.Rand) []interface{} {
	if len(fleetIDs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		tripType := "D"
		if rng.Intn(2) == 1 {
			tripType = "S"
		}
		tripDate := startDate.AddDate(0, 0, i)

		delivery := bson.A{}
		sale := bson.A{}
		if tripType == "D" {
			for n := 1 + rng.Intn(2); n > 0; n-- {
				delivery = append(delivery, bson.D{
					{Key: "item", Value: deliveryItems[rng.Intn(len(deliveryItems))]},
					{Key: "qty", Value: 30 + rng.Intn(121)},
				})
			}
		} else {
			for n := 1 + rng.Intn(2); n > 0; n-- {
				sale = append(sale, bson.D{
					{Key: "item", Value: saleItems[rng.Intn(len(saleItems))]},
					{Key: "qty", Value: 10 + rng.Intn(91)},
				})
			}
		}

		docs = append(docs, bson.D{
			{Key: "trip_no", Value: fmt.Sprintf("%s#%s - %04d", tripType, tripDate.Format("20060102"), i+1)},
			{Key: "trip_schedule", Value: bson.D{{Key: "date", Value: tripDate.Format("2006-01-02")}}},
			{Key: "status", Value: rng.Intn(6)},
			{Key: "genericdata", Value: bson.D{
				{Key: "fleet", Value: fleetIDs[rng.Intn(len(fleetIDs))]},
				{Key: "driver_name", Value: seedDrivers[rng.Intn(len(seedDrivers))]},
				{Key: "customer_name", Value: seedCustomers[rng.Intn(len(seedCustomers))]},
			}},
			{Key: "odometer_start", Value: 5000 + rng.Intn(10001)},
			{Key: "odometer_end", Value: 15001 + rng.Intn(10000)},
			{Key: "orders", Value: bson.D{
				{Key: "delivery", Value: delivery},
				{Key: "sale", Value: sale},
			}},
		})
	}
	return docs
}
