/*
dto.go - wire-format request/response shapes for the COC engine API.

Grounded on the teacher's api/dto.go naming convention (flat JSON
structs, tagged fields, a conversion function per direction rather than
exposing domain types directly on the wire).
*/
package api

import (
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/query"
	"github.com/cocrecords/coc-engine/validation"
)

type EntryDTO struct {
	Date  string `json:"date"`
	AMIn  string `json:"amIn,omitempty"`
	AMOut string `json:"amOut,omitempty"`
	PMIn  string `json:"pmIn,omitempty"`
	PMOut string `json:"pmOut,omitempty"`
}

type SubmitBatchRequest struct {
	EmployeeID string     `json:"employeeId"`
	MonthName  string     `json:"monthName"`
	Year       int        `json:"year"`
	Entries    []EntryDTO `json:"entries"`
}

type SkippedDuplicateDTO struct {
	Date string `json:"date"`
}

type SubmitBatchResponse struct {
	EntriesLogged     int                   `json:"entriesLogged"`
	TotalCreditHours  float64               `json:"totalCreditHours"`
	SkippedDuplicates []SkippedDuplicateDTO `json:"skippedDuplicates,omitempty"`
	LogIDs            []string              `json:"logIds"`
}

func toSubmitResponse(r *validation.Result) SubmitBatchResponse {
	skipped := make([]SkippedDuplicateDTO, 0, len(r.SkippedDuplicates))
	for _, s := range r.SkippedDuplicates {
		skipped = append(skipped, SkippedDuplicateDTO{Date: s.Date.ISO()})
	}
	return SubmitBatchResponse{
		EntriesLogged:     r.EntriesLogged,
		TotalCreditHours:  r.TotalCreditHours.Float64(),
		SkippedDuplicates: skipped,
		LogIDs:            r.LogIDs,
	}
}

type CertifyRequest struct {
	EmployeeID     string `json:"employeeId"`
	MonthName      string `json:"monthName"`
	Year           int    `json:"year"`
	DateOfIssuance string `json:"dateOfIssuance"`
}

type CertifyResponse struct {
	CertificateID  string  `json:"certificateId"`
	EmployeeID     string  `json:"employeeId"`
	MonthName      string  `json:"monthName"`
	Year           int     `json:"year"`
	DateOfIssuance string  `json:"dateOfIssuance"`
	ValidUntil     string  `json:"validUntil"`
	BatchID        string  `json:"batchId"`
	TotalHours     float64 `json:"totalHours"`
}

func toCertifyResponse(c *coc.Certificate) CertifyResponse {
	return CertifyResponse{
		CertificateID:  c.CertificateID,
		EmployeeID:     c.EmployeeID,
		MonthName:      c.MonthName,
		Year:           c.Year,
		DateOfIssuance: c.DateOfIssuance.ISO(),
		ValidUntil:     c.ValidUntil.ISO(),
		BatchID:        c.BatchID,
		TotalHours:     c.TotalHours.Float64(),
	}
}

type DebitRequest struct {
	EmployeeID  string  `json:"employeeId"`
	Hours       float64 `json:"hours"`
	ReferenceID string  `json:"referenceId"`
}

type AllocationDTO struct {
	BatchID       string  `json:"batchId"`
	HoursConsumed float64 `json:"hoursConsumed"`
}

type DebitResponse struct {
	Allocations []AllocationDTO `json:"allocations"`
}

func toDebitResponse(allocs []creditledger.Allocation) DebitResponse {
	out := make([]AllocationDTO, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, AllocationDTO{BatchID: a.BatchID, HoursConsumed: a.HoursConsumed.Float64()})
	}
	return DebitResponse{Allocations: out}
}

type BalanceDTO struct {
	EmployeeID  string  `json:"employeeId"`
	Active      float64 `json:"active"`
	Uncertified float64 `json:"uncertified"`
	TotalEarned float64 `json:"totalEarned"`
	Used        float64 `json:"used"`
	Expired     float64 `json:"expired"`
}

func toBalanceDTO(employeeID string, b coc.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  employeeID,
		Active:      b.Active.Float64(),
		Uncertified: b.Uncertified.Float64(),
		TotalEarned: b.TotalEarned.Float64(),
		Used:        b.Used.Float64(),
		Expired:     b.Expired.Float64(),
	}
}

type LedgerLineDTO struct {
	Date   string  `json:"date"`
	Kind   string  `json:"kind"`
	Hours  float64 `json:"hours,omitempty"`
	Status string  `json:"status,omitempty"`
}

func toLedgerLineDTOs(lines []query.LedgerLine) []LedgerLineDTO {
	out := make([]LedgerLineDTO, 0, len(lines))
	for _, l := range lines {
		dto := LedgerLineDTO{Date: l.Date.ISO(), Kind: l.Kind}
		if l.Batch != nil {
			dto.Hours = l.Batch.OriginalHours.Float64()
			dto.Status = string(l.Batch.Status)
		}
		if l.Entry != nil {
			dto.Hours = l.Entry.Hours.Float64()
			dto.Status = string(l.Entry.TransactionType)
		}
		out = append(out, dto)
	}
	return out
}

type UncertifiedStatsDTO struct {
	TotalLogs  int     `json:"totalLogs"`
	TotalHours float64 `json:"totalHours"`
}

type UncertifiedRowDTO struct {
	LogID        string  `json:"logId"`
	EmployeeID   string  `json:"employeeId"`
	EmployeeName string  `json:"employeeName"`
	DateWorked   string  `json:"dateWorked"`
	COCEarned    float64 `json:"cocEarned"`
}

func toUncertifiedRowDTOs(rows []query.UncertifiedLogWithName) []UncertifiedRowDTO {
	out := make([]UncertifiedRowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, UncertifiedRowDTO{
			LogID: r.Log.LogID, EmployeeID: r.Log.EmployeeID, EmployeeName: r.EmployeeName,
			DateWorked: r.Log.DateWorked.ISO(), COCEarned: r.Log.COCEarned.Float64(),
		})
	}
	return out
}

type ErrorDTO struct {
	Kind    string `json:"kind"`
	Subkind string `json:"subkind,omitempty"`
	Message string `json:"message"`
}
