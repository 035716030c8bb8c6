// utils/notification_utils.go
package utils

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/websocket"
)

// SaveNotification persists a notification for a user.
func SaveNotification(db *mongo.Client, userID primitive.ObjectID, title, message, notifType string, data interface{}) error {
	collection := config.GetCollection(db, "notifications")

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		Data:      data,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	_, err := collection.InsertOne(context.Background(), notification)
	return err
}

// Notify persists a notification and pushes it to the user over WebSocket
// when connected. The push is best effort; the stored document is the source
// of truth.
func Notify(db *mongo.Client, hub *websocket.Hub, userID primitive.ObjectID, title, message, notifType string, data interface{}) error {
	if err := SaveNotification(db, userID, title, message, notifType, data); err != nil {
		return err
	}

	if hub != nil {
		if err := hub.SendToUser(userID, websocket.Notification{
			Type:    notifType,
			Title:   title,
			Message: message,
			Data:    data,
		}); err != nil {
			log.Printf("WebSocket push to %s skipped: %v", userID.Hex(), err)
		}
	}

	return nil
}

// BroadcastCriteria filters the recipients of a broadcast. Empty fields match
// everyone.
type BroadcastCriteria struct {
	Role       string
	City       string
	BloodGroup string
}

// Broadcast fans out one notification per user matching the criteria and
// returns the number of recipients. Zero recipients is not an error.
func Broadcast(db *mongo.Client, hub *websocket.Hub, criteria BroadcastCriteria, title, message string, data interface{}) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{"accountStatus": models.AccountActive}
	if criteria.Role != "" {
		filter["role"] = criteria.Role
	}
	if criteria.City != "" {
		filter["city"] = criteria.City
	}
	if criteria.BloodGroup != "" {
		filter["bloodGroup"] = criteria.BloodGroup
	}

	cursor, err := config.GetCollection(db, "users").Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return 0, err
	}

	if len(users) == 0 {
		return 0, nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(users))
	for _, user := range users {
		docs = append(docs, models.Notification{
			ID:        primitive.NewObjectID(),
			UserID:    user.ID,
			Title:     title,
			Message:   message,
			Type:      models.NotificationBroadcast,
			Data:      data,
			IsRead:    false,
			CreatedAt: now,
		})
	}

	_, err = config.GetCollection(db, "notifications").InsertMany(ctx, docs)
	if err != nil {
		return 0, err
	}

	if hub != nil {
		for _, user := range users {
			hub.SendToUser(user.ID, websocket.Notification{
				Type:    models.NotificationBroadcast,
				Title:   title,
				Message: message,
				Data:    data,
			})
		}
	}

	return len(users), nil
}

// NotifyNearbyDonors alerts eligible, approved donors close to a critical
// request whose blood group can serve it.
func NotifyNearbyDonors(db *mongo.Client, hub *websocket.Hub, request models.Request, radiusMeters float64) (int, error) {
	if request.Location == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{
		"role":               models.RoleDonor,
		"verificationStatus": models.VerificationApproved,
		"accountStatus":      models.AccountActive,
		"eligible":           true,
		"bloodGroup":         bson.M{"$in": models.CompatibleDonorGroups(request.BloodGroup)},
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": request.Location.Coordinates,
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := config.GetCollection(db, "users").Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var donors []models.User
	if err := cursor.All(ctx, &donors); err != nil {
		return 0, err
	}

	sent := 0
	for _, donor := range donors {
		err := Notify(db, hub, donor.ID,
			"Urgent blood request near you",
			"A critical request for "+request.BloodGroup+" blood was created near your location",
			models.NotificationRequestCreated,
			map[string]string{"requestId": request.ID.Hex(), "bloodGroup": request.BloodGroup})
		if err != nil {
			log.Printf("Failed to notify donor %s: %v", donor.ID.Hex(), err)
			continue
		}
		sent++
	}
	return sent, nil
}
