// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"github.com/holiman/uint256"
)

// feeDenominator is the fixed-point base every fee ratio (collection market
// fee, marketplace cut) is expressed against, matching atomicmarket's own
// on-chain convention of fees as a fraction of 1.0 stored in a double and
// rounded to this many basis points here.
const feeDenominator = 100000

// SaleProceeds is how one sale's total price is split, mirroring the
// allocation-struct shape of a base-fee distribution: the seller's net
// share, the collection author's royalty, and the two marketplaces'
// (maker/taker) cuts.
type SaleProceeds struct {
	Seller           *uint256.Int
	CollectionAuthor *uint256.Int
	MakerMarketplace *uint256.Int
	TakerMarketplace *uint256.Int
}

func allocate(total *uint256.Int, feeBps uint64) *uint256.Int {
	if feeBps == 0 {
		return uint256.NewInt(0)
	}
	share := new(uint256.Int).Mul(total, uint256.NewInt(feeBps))
	share.Div(share, uint256.NewInt(feeDenominator))
	return share
}

// CalculateSaleProceeds splits totalPrice among the collection author
// (collectionFeeBps), the maker and taker marketplaces (split evenly from
// marketplaceFeeBps), and the seller, who receives whatever remains. The
// shape follows fee_calculator.go's CalculateFees: compute each allocation
// independently off the same total, then subtract every allocation from the
// total to find what the primary party keeps.
func CalculateSaleProceeds(totalPrice *uint256.Int, collectionFeeBps, marketplaceFeeBps uint64) SaleProceeds {
	total := new(uint256.Int).Set(totalPrice)

	collectionAuthor := allocate(total, collectionFeeBps)
	marketplaceTotal := allocate(total, marketplaceFeeBps)

	half := new(uint256.Int).Div(marketplaceTotal, uint256.NewInt(2))
	makerShare := new(uint256.Int).Set(half)
	takerShare := new(uint256.Int).Sub(marketplaceTotal, half)

	seller := new(uint256.Int).Set(total)
	seller.Sub(seller, collectionAuthor)
	seller.Sub(seller, makerShare)
	seller.Sub(seller, takerShare)

	return SaleProceeds{
		Seller:           seller,
		CollectionAuthor: collectionAuthor,
		MakerMarketplace: makerShare,
		TakerMarketplace: takerShare,
	}
}
