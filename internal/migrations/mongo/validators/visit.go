package validators

import "go.mongodb.org/mongo-driver/bson"

var VisitValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"visit_date_time",
			"status",
			"property_id",
			"customer_id",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"visit_date_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"SCHEDULED", "WAITING_CONFIRMATION", "CANCELED", "DONE"},
			},

			"property_id": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  1,
			},

			"customer_id": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  1,
			},

			// Unclaimed visits carry an explicit null.
			"broker_id": bson.M{
				"bsonType": []string{"long", "int", "null"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var VisitLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "expires_at", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
				"pattern":  "^visit_lock_[0-9]+_-?[0-9]+$",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
