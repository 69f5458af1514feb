package campus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// datatablePayload is the fixed query the my.fudan data tables expect.
const datatablePayload = "draw=1" +
	"&columns%5B0%5D%5Bdata%5D=0&columns%5B0%5D%5Bname%5D=&columns%5B0%5D%5Bsearchable%5D=true" +
	"&columns%5B0%5D%5Borderable%5D=false&columns%5B0%5D%5Bsearch%5D%5Bvalue%5D=" +
	"&columns%5B0%5D%5Bsearch%5D%5Bregex%5D=false" +
	"&columns%5B1%5D%5Bdata%5D=1&columns%5B1%5D%5Bname%5D=&columns%5B1%5D%5Bsearchable%5D=true" +
	"&columns%5B1%5D%5Borderable%5D=false&columns%5B1%5D%5Bsearch%5D%5Bvalue%5D=" +
	"&columns%5B1%5D%5Bsearch%5D%5Bregex%5D=false" +
	"&start=0&length=10&search%5Bvalue%5D=&search%5Bregex%5D=false"

const dateLayout = "2006-01-02"

type datatable struct {
	Data [][]string `json:"data"`
}

type dateValue struct {
	date  time.Time
	value float64
}

func (c *Client) datatable(ctx context.Context, path string, body []byte) (datatable, error) {
	b, err := c.my.Data(ctx, api.Request{
		Path:        path,
		Method:      http.MethodPost,
		Body:        body,
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return datatable{}, err
	}
	var t datatable
	if err := json.Unmarshal(b, &t); err != nil {
		return datatable{}, fmt.Errorf("%w: %s: %v", errs.ErrBadResponse, path, err)
	}
	return t, nil
}

// parseDateValues reads the last two columns of each row as (date, number) and skips
// rows that do not parse.
func parseDateValues(rows [][]string) []dateValue {
	out := make([]dateValue, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(r[len(r)-2]), shanghai)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r[len(r)-1]), 64)
		if err != nil {
			continue
		}
		out = append(out, dateValue{date: d, value: v})
	}
	return out
}

// ElectricityLogs returns daily dormitory electricity usage.
func (c *Client) ElectricityLogs(ctx context.Context) ([]model.ElectricityLog, error) {
	t, err := c.datatable(ctx, "/data_tables/ykt_xszsqyydqk.json", []byte(datatablePayload))
	if err != nil {
		return nil, err
	}
	dv := parseDateValues(t.Data)
	logs := make([]model.ElectricityLog, len(dv))
	for i, x := range dv {
		logs[i] = model.ElectricityLog{Date: x.date, Usage: x.value}
	}
	return logs, nil
}

// WalletLogs returns daily e-card spending.
func (c *Client) WalletLogs(ctx context.Context) ([]model.WalletLog, error) {
	t, err := c.datatable(ctx, "/data_tables/ykt_mrxf.json", []byte(datatablePayload))
	if err != nil {
		return nil, err
	}
	dv := parseDateValues(t.Data)
	logs := make([]model.WalletLog, len(dv))
	for i, x := range dv {
		logs[i] = model.WalletLog{Date: x.date, Amount: x.value}
	}
	return logs, nil
}

// CardInfo returns the e-card owner, status and balance.
func (c *Client) CardInfo(ctx context.Context) (model.CardInfo, error) {
	t, err := c.datatable(ctx, "/data_tables/ykt_xx.json", nil)
	if err != nil {
		return model.CardInfo{}, err
	}
	if len(t.Data) == 0 || len(t.Data[0]) < 6 {
		return model.CardInfo{}, fmt.Errorf("%w: card info row missing", errs.ErrBadResponse)
	}
	r := t.Data[0]
	return model.CardInfo{
		UserID:          r[0],
		UserName:        r[1],
		CardStatus:      r[2],
		EntryPermission: r[3],
		ExpirationDate:  r[4],
		Balance:         r[5],
	}, nil
}
