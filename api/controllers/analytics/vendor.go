package analytics

import (
	"net/http"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/api/responses"
	"github.com/angelmondragon/marketledger-backend/api/validators"
	"github.com/angelmondragon/marketledger-backend/internal/analytics"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

// VendorLedgerSummary reports daily ledger totals and settlement sums for a
// vendor. Vendors only see their own ledger; admins may read any.
func VendorLedgerSummary(service analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if service == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if middleware.RoleFromContext(ctx) == middleware.RoleVendor && middleware.UserIDFromContext(ctx) != vendorID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "vendors may only read their own ledger"))
			return
		}

		start, end, err := resolveRange(r, timeNowUTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := service.LedgerSummary(ctx, types.LedgerSummaryRequest{
			VendorID: vendorID.String(),
			Start:    start,
			End:      end,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
