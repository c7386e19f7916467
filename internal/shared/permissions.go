package shared

// Capability names checked by rbac before an operation runs.
const (
	PermAccountingView   = "accounting.view"
	PermAccountingManage = "accounting.manage"
	PermDocumentsCreate  = "documents.create"
	PermDocumentsReverse = "documents.reverse"
	PermStockView        = "stock.view"
	PermStockAdjust      = "stock.adjust"
)

// AllPermissions lists every capability known to the service.
func AllPermissions() []string {
	return []string{
		PermAccountingView,
		PermAccountingManage,
		PermDocumentsCreate,
		PermDocumentsReverse,
		PermStockView,
		PermStockAdjust,
	}
}
