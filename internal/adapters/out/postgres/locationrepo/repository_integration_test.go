package locationrepo_test

import (
	"context"
	"testing"
	"time"

	"dispatch/internal/adapters/out/postgres/locationrepo"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/location"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type LocationHistoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *locationrepo.GormLocationHistoryRepository
}

func (suite *LocationHistoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&locationrepo.LocationHistoryDTO{}))
}

func (suite *LocationHistoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE location_history").Error)
	suite.repository = locationrepo.NewGormLocationHistoryRepository(suite.db)
}

func (suite *LocationHistoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *LocationHistoryIntegrationTestSuite) TestInsertBatch_ReplayInsertsNothingTwice() {
	ctx := context.Background()
	driverID := kernel.NewUUID()
	batch := []location.Position{
		suite.position(driverID, t0),
		suite.position(kernel.NewUUID(), t0),
	}

	suite.Require().NoError(suite.repository.InsertBatch(ctx, batch))
	suite.Require().NoError(suite.repository.InsertBatch(ctx, batch))
	suite.assertRows(2)

	suite.Require().NoError(suite.repository.InsertBatch(ctx, []location.Position{
		suite.position(driverID, t0.Add(time.Second)),
	}))
	suite.assertRows(3)
}

func (suite *LocationHistoryIntegrationTestSuite) TestInsertBatch_Empty() {
	suite.Require().NoError(suite.repository.InsertBatch(context.Background(), nil))
	suite.assertRows(0)
}

func (suite *LocationHistoryIntegrationTestSuite) position(driverID kernel.UUID, at time.Time) location.Position {
	p, err := location.NewPosition(driverID, 48.85, 2.35, 90, at)
	suite.Require().NoError(err)
	return p
}

func (suite *LocationHistoryIntegrationTestSuite) assertRows(expected int64) {
	var count int64
	suite.Require().NoError(suite.db.Model(&locationrepo.LocationHistoryDTO{}).Count(&count).Error)
	suite.Equal(expected, count)
}

func TestLocationHistoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(LocationHistoryIntegrationTestSuite))
}
