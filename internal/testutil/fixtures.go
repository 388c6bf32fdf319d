// Package testutil provides credit batches shared by package tests.
package testutil

import (
	"math/rand"

	"github.com/wonny/creditpd/internal/contracts"
)

// TwoRowCSV is the minimal valid raw batch: IDs 1 and 2, ages 25 and 40,
// one default each. It carries a few extra columns a reader must ignore.
const TwoRowCSV = `ID,LIMIT_BAL,SEX,EDUCATION,MARRIAGE,AGE,PAY_0,PAY_2,PAY_3,PAY_4,PAY_5,PAY_6,BILL_AMT1,BILL_AMT2,BILL_AMT3,BILL_AMT4,BILL_AMT5,BILL_AMT6,PAY_MEAN,PAY_MAX,PAY_MIN,AGE_BINNED,PAY_AMT1,PAY_AMT2,PAY_AMT3,PAY_AMT4,PAY_AMT5,PAY_AMT6,default.payment.next.month
1,20000.0,1,2,1,25,0,2,1,0,-1,-1,3913.1,3102.3,689.1,0.0,0.0,0.0,0.0,0,0,0,0.0,689.0,0.0,0.0,0.0,0.0,0
2,30000.0,2,1,2,40,-1,2,1,0,-1,-1,2000.0,3000.0,6000.3,0.0,0.0,0.0,-0.2,0,-1,2,0.0,6000.0,0.0,0.0,0.0,0.0,1
`

// TwoRowRecords returns TwoRowCSV as typed records
func TwoRowRecords() []contracts.Record {
	return []contracts.Record{
		{
			ID: 1, LimitBal: 20000, Sex: 1, Education: 2, Marriage: 1, Age: 25,
			Pay:     [6]int{0, 2, 1, 0, -1, -1},
			BillAmt: [6]float64{3913.1, 3102.3, 689.1, 0, 0, 0},
			PayAmt:  [6]float64{0, 689, 0, 0, 0, 0},
			Default: 0,
		},
		{
			ID: 2, LimitBal: 30000, Sex: 2, Education: 1, Marriage: 2, Age: 40,
			Pay:     [6]int{-1, 2, 1, 0, -1, -1},
			BillAmt: [6]float64{2000, 3000, 6000.3, 0, 0, 0},
			PayAmt:  [6]float64{0, 6000, 0, 0, 0, 0},
			Default: 1,
		},
	}
}

// SyntheticRecords returns n valid records whose default label depends on
// payment status and limit, so classifiers can learn a signal.
func SyntheticRecords(n int, seed int64) []contracts.Record {
	rng := rand.New(rand.NewSource(seed))
	out := make([]contracts.Record, n)
	for i := range out {
		r := contracts.Record{
			ID:        int64(i + 1),
			LimitBal:  float64(20000 + rng.Intn(50)*10000),
			Sex:       1 + rng.Intn(2),
			Education: 1 + rng.Intn(6),
			Marriage:  1 + rng.Intn(3),
			Age:       21 + rng.Intn(55),
		}
		late := rng.Float64() < 0.35
		for k := 0; k < 6; k++ {
			if late {
				r.Pay[k] = rng.Intn(4)
			} else {
				r.Pay[k] = -1 + rng.Intn(2)
			}
			r.BillAmt[k] = float64(rng.Intn(50000)) - 2000
			r.PayAmt[k] = float64(rng.Intn(10000))
		}

		score := float64(r.Pay[0]+r.Pay[1]) - r.LimitBal/200000 + rng.NormFloat64()*0.5
		if score > 0.8 {
			r.Default = 1
		}
		out[i] = r
	}
	// both classes must exist for stratified splits
	out[0].Default, out[1].Default = 0, 1
	return out
}
