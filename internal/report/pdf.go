package report

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/tverberg/punch/internal/model"
	"github.com/tverberg/punch/internal/stats"
)

// WritePDF renders the aggregated range as a portrait A4 document: a day
// table, a per-task rollup, and an averages footer.
func WritePDF(path, title string, days []model.DayData, averages stats.Averages, nodes []model.Node) error {
	names := nameIndex(nodes)

	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(title, props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
		if len(days) > 0 {
			m.Row(10, func() {
				m.Col(12, func() {
					dateRange := fmt.Sprintf("%s - %s", days[0].Date, days[len(days)-1].Date)
					m.Text(dateRange, props.Text{
						Top:   3,
						Align: consts.Center,
						Size:  12,
					})
				})
			})
		}
	})

	dayRows := [][]string{}
	var taskIDs []string
	seen := map[string]bool{}
	for _, day := range days {
		dayRows = append(dayRows, []string{day.Date, formatDuration(day.Total)})
		for _, taskID := range sortedKeys(day.ByTask) {
			if !seen[taskID] {
				seen[taskID] = true
				taskIDs = append(taskIDs, taskID)
			}
		}
	}

	m.Row(10, func() {
		m.Col(12, func() {
			m.Text("Daily totals", props.Text{
				Top:   5,
				Style: consts.Bold,
				Size:  14,
			})
		})
	})
	m.TableList([]string{"Date", "Time"}, dayRows, props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{6, 6},
		},
		ContentProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{6, 6},
		},
		Align:                consts.Center,
		AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
		HeaderContentSpace:   1,
		Line:                 false,
	})

	rollupRows := [][]string{}
	for _, taskID := range taskIDs {
		rollupRows = append(rollupRows, []string{
			names.lookup(taskID),
			formatDuration(sumForTask(days, taskID)),
			formatDuration(averages.PerTask[taskID]),
		})
	}

	m.Row(10, func() {
		m.Col(12, func() {
			m.Text("By category", props.Text{
				Top:   5,
				Style: consts.Bold,
				Size:  14,
			})
		})
	})
	m.TableList([]string{"Category", "Total", "Avg/day"}, rollupRows, props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{6, 3, 3},
		},
		ContentProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{6, 3, 3},
		},
		Align:                consts.Center,
		AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
		HeaderContentSpace:   1,
		Line:                 false,
	})

	m.Row(20, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("Average per active day: %s (%d days)", formatDuration(averages.PerDay), averages.ActiveDays), props.Text{
				Top:   10,
				Style: consts.Bold,
				Align: consts.Right,
				Size:  12,
			})
		})
	})

	return m.OutputFileAndClose(path)
}

func sumForTask(days []model.DayData, taskID string) time.Duration {
	var total time.Duration
	for _, day := range days {
		total += day.ByTask[taskID]
	}
	return total
}
