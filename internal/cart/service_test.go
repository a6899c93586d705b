package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

func TestAddItemGroupsByVendorAndConsume(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()
	svc, err := NewService(NewRepository(conn), client)
	require.NoError(t, err)
	ctx := context.Background()

	userID, vendorID := uuid.New(), uuid.New()
	add := func(name string, qty int, price int64) *models.CartVendor {
		cv, err := svc.AddItem(ctx, AddItemInput{
			UserID: userID, VendorID: vendorID, Currency: enums.CurrencyNGN,
			ProductID: uuid.New(), ProductName: name, Quantity: qty, UnitPrice: price,
		})
		require.NoError(t, err)
		return cv
	}
	first := add("Jollof", 2, 2000)
	second := add("Plantain", 1, 1000)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Items, 2)
	assert.Equal(t, int64(5000), Gross(second).Amount)

	_, err = svc.AddItem(ctx, AddItemInput{
		UserID: userID, VendorID: vendorID, Currency: enums.CurrencyUSD,
		ProductID: uuid.New(), ProductName: "x", Quantity: 1, UnitPrice: 1,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, nil, uuid.New(), second.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	deleted, err := svc.Consume(ctx, conn, second.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = svc.Consume(ctx, conn, second.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	var items int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("cart_vendor_id = ?", second.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestAddItemValidation(t *testing.T) {
	client := dbtest.Client(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), AddItemInput{UserID: uuid.New(), VendorID: uuid.New(), ProductID: uuid.New(),
		Currency: enums.CurrencyNGN, ProductName: "x", Quantity: 0, UnitPrice: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
