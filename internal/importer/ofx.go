package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"budgetledger/internal/ledger"
)

const ofxLayout = "ofx"

// parseOFX reads bank and credit card statement transactions. Credits,
// deposits and interest are income; everything else takes the
// sign of TRNAMT, with outflows filed as wants.
func (p *Parser) parseOFX(data []byte) ([]Row, error) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var txns []ofxgo.Transaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			txns = append(txns, stmt.BankTranList.Transactions...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			txns = append(txns, stmt.BankTranList.Transactions...)
		}
	}
	if len(resp.Bank) == 0 && len(resp.CreditCard) == 0 {
		return nil, fmt.Errorf("%w: no bank or credit card statement found", ErrMalformed)
	}
	if err := p.checkRows(len(txns)); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(txns))
	for i, txn := range txns {
		rows = append(rows, ofxRow(i+1, txn))
	}
	return rows, nil
}

func ofxRow(line int, txn ofxgo.Transaction) Row {
	date := txn.DtPosted.Time
	name := strings.TrimSpace(txn.Name.String())
	memo := strings.TrimSpace(txn.Memo.String())
	amountText := txn.TrnAmt.FloatString(8)

	raw := map[string]string{
		"fitid":   txn.FiTID.String(),
		"trntype": fmt.Sprint(txn.TrnType),
		"trnamt":  amountText,
		"name":    name,
		"memo":    memo,
	}

	row := Row{Line: line, Layout: ofxLayout, Raw: raw, Description: name}
	if row.Description == "" {
		row.Description = memo
	}
	if !date.IsZero() {
		row.Date = date.UTC().Format("2006-01-02")
		raw["dtposted"] = row.Date
	}

	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		row.Amount = amountText
		row.Kind = string(ledger.KindWants)
		return row
	}

	income := amount.IsPositive()
	switch txn.TrnType {
	case ofxgo.TrnTypeCredit, ofxgo.TrnTypeDep, ofxgo.TrnTypeInt:
		income = true
	case ofxgo.TrnTypeDebit, ofxgo.TrnTypeFee, ofxgo.TrnTypeATM,
		ofxgo.TrnTypePOS, ofxgo.TrnTypeCheck, ofxgo.TrnTypePayment:
		income = false
	}
	if income {
		row.Kind = string(ledger.KindIncome)
	} else {
		row.Kind = string(ledger.KindWants)
	}
	row.Amount = amount.Abs().String()
	return row
}
