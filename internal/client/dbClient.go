package client

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"gatepass-backend/internal/model"
)

func InitMysqlClient(databaseURL string) *gorm.DB {
	var err error
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for concurrent finalizations)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Event{},
		&model.Order{},
		&model.PaymentCheckout{},
		&model.PayeeCredential{},
		&model.Ticket{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
