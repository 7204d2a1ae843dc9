package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"bgjob/internal/jobs"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const labelColumnWidth = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

var jobTableHeaders = []string{"ID", "Parent", "Queue", "Status", "Type", "Label", "Retries", "Worker", "Updated"}

var jobTableAligns = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

func buildJobRows(list []*jobs.Job) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		parent := "-"
		if job.ParentID() != 0 {
			parent = strconv.FormatInt(job.ParentID(), 10)
		}
		worker := job.WorkerID()
		if worker == "" {
			worker = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID(), 10),
			parent,
			job.Queue(),
			string(job.Status()),
			job.Type(),
			text.Trim(job.Label(), labelColumnWidth),
			strconv.Itoa(job.RetryCount()) + "/" + strconv.Itoa(job.MaxRetries()),
			worker,
			formatTimestamp(job.UpdatedAt()),
		})
	}
	return rows
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}
