package misc

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"

	log "github.com/sirupsen/logrus"
)

type TipsManager struct {
	Tips           []*Tip
	CategoriesTips map[string][]*Tip
}

func NewTipsManager(tipsCsvReader *csv.Reader) (*TipsManager, error) {
	tm := &TipsManager{}
	tm.CategoriesTips = make(map[string][]*Tip)

	log.Println("reading tips CSV ...")

	tipsCsvReader.Comma = ';'
	for {
		record, err := tipsCsvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(record) != 3 {
			return nil, fmt.Errorf("record [%s] does not have 3 elements", record)
		}

		// TIP;SOURCE;CATEGORY
		tip := NewTip(record[0], record[1], record[2])
		tm.Tips = append(tm.Tips, tip)
		tm.CategoriesTips[tip.Category] = append(tm.CategoriesTips[tip.Category], tip)
	}

	if len(tm.Tips) == 0 {
		return nil, fmt.Errorf("no tips found in CSV")
	}

	log.Printf("tips CSV read %d tips", len(tm.Tips))

	return tm, nil
}

func (tm *TipsManager) RandomTip() *Tip {
	index := rand.Float64() * float64(len(tm.Tips))
	return tm.Tips[int(index)]
}
