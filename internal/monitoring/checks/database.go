package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/monitoring"
)

// Database pings the primary store.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}
		return monitoring.ResultFromError(sqlDB.PingContext(ctx), time.Since(start))
	})
}
