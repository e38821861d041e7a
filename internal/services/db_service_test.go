package services_test

import (
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/stretchr/testify/suite"
)

type DBServiceTestSuite struct {
	suite.Suite
}

func (suite *DBServiceTestSuite) TestNewSqliteDBServiceInMemory() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.NotNil(db.GetDB())
	defer db.Close()

	suite.True(db.GetDB().Migrator().HasTable(&models.SessionEntry{}))
	suite.True(db.GetDB().Migrator().HasTable(&models.Preference{}))
	suite.True(db.GetDB().Migrator().HasTable(&models.Deployment{}))
}

func (suite *DBServiceTestSuite) TestNewSqliteDBServiceCreatesDirectory() {
	path := filepath.Join(suite.T().TempDir(), "nested", "auditsmart.db")
	db, err := services.NewSqliteDBService(path)
	suite.Require().NoError(err)
	suite.NoError(db.Close())
	suite.FileExists(path)
}

func (suite *DBServiceTestSuite) TestNewPostgresDBServiceEmptyDSN() {
	_, err := services.NewPostgresDBService("")
	suite.Error(err)
}

func TestDBServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DBServiceTestSuite))
}
