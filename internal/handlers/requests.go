package handlers

import (
	"github.com/gin-gonic/gin"

	"asset-tracker/internal/store"
)

// requestFilter reads the shared ?status=&asset_id= query.
func requestFilter(c *gin.Context) (store.RequestFilter, bool) {
	assetID, ok := queryID(c, "asset_id")
	if !ok {
		return store.RequestFilter{}, false
	}
	return store.RequestFilter{Status: c.Query("status"), AssetID: assetID}, true
}
