package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/rapport/pkg/storage"
	"github.com/papercomputeco/rapport/pkg/storage/postgres"
	"github.com/papercomputeco/rapport/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("RAPPORT_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("RAPPORT_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DescribeDriver(func() storage.Driver {
		ctx := context.Background()
		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all rows before each test for isolation.
		_, err = d.Pool.Exec(ctx, "TRUNCATE messages, memory_facts")
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})
