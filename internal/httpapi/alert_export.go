package httpapi

import (
	"fmt"
	"time"

	"github.com/Huzaifa-202/autonomous-store-sub000/internal/models"

	"github.com/xuri/excelize/v2"
)

// AlertExportHeader 导出表头
var AlertExportHeader = []string{
	"ID",
	"Timestamp",
	"Detection Type",
	"Frame Number",
	"Unknown ID",
	"Location",
	"Status",
	"Created At",
	"Updated At",
}

// GenerateAlertExport 生成报警列表导出 Excel 文件
// alerts 为空时只生成表头
func GenerateAlertExport(alerts []*models.Alert) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteToBuffer needs the file to be open

	sheetName := "Alerts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写表头
	for i, header := range AlertExportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写数据行
	for rowIdx, alert := range alerts {
		values := []interface{}{
			alert.ID,
			alert.Timestamp.Format(time.RFC3339),
			alert.DetectionType,
			alert.FrameNumber,
			alert.UnknownID,
			string(alert.Location),
			string(alert.Status),
			alert.CreatedAt.Format(time.RFC3339),
			alert.UpdatedAt.Format(time.RFC3339),
		}
		for colIdx, value := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	f.Close()

	return buf.Bytes(), nil
}
