package cluster

import (
	"fmt"
	"time"

	"zcl-gateway/internal/zcl"
)

// HandleAttributeReport applies reported values and notifies listeners. A
// report for an attribute the cluster does not define ends processing of the
// batch: later reports in the same call are not applied.
func (c *Cluster) HandleAttributeReport(reports []zcl.AttributeReport) {
	now := time.Now()
	for i, report := range reports {
		attr, ok := c.attrs.update(report.AttributeIdentifier, report.AttributeValue, now)
		if !ok {
			c.logger.Debug("report for unknown attribute, dropping rest of batch",
				"attr", fmt.Sprintf("0x%04X", report.AttributeIdentifier),
				"dropped", len(reports)-i)
			return
		}
		c.notify(attr)
	}
}

// HandleAttributeStatus applies the records of a read attributes response and
// notifies listeners. Values are stored whatever the record status. An
// unknown attribute fails with ErrUnknownAttribute; records before it stay applied.
func (c *Cluster) HandleAttributeStatus(records []zcl.ReadAttributeStatusRecord) error {
	now := time.Now()
	for _, rec := range records {
		attr, ok := c.attrs.update(rec.AttributeIdentifier, rec.AttributeValue, now)
		if !ok {
			return fmt.Errorf("attribute status 0x%04X: %w", rec.AttributeIdentifier, ErrUnknownAttribute)
		}
		c.notify(attr)
	}
	return nil
}
