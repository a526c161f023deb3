package weather

// Dataset is an ordered, read-only collection of historical readings.
// Readings of one city are assumed to be in chronological order; nothing
// here sorts them.
type Dataset struct {
	readings []Reading
	cities   []string
	byCity   map[string][]Reading
}

// NewDataset builds a Dataset from readings in their given order.
func NewDataset(readings []Reading) Dataset {
	ds := Dataset{
		readings: make([]Reading, len(readings)),
		byCity:   make(map[string][]Reading),
	}
	copy(ds.readings, readings)

	for _, r := range ds.readings {
		if _, ok := ds.byCity[r.City]; !ok {
			ds.cities = append(ds.cities, r.City)
		}
		ds.byCity[r.City] = append(ds.byCity[r.City], r)
	}
	return ds
}

// Len returns the number of readings.
func (d Dataset) Len() int { return len(d.readings) }

// Readings returns a copy of all readings in dataset order.
func (d Dataset) Readings() []Reading {
	out := make([]Reading, len(d.readings))
	copy(out, d.readings)
	return out
}

// Cities returns city names in order of first appearance.
func (d Dataset) Cities() []string {
	out := make([]string, len(d.cities))
	copy(out, d.cities)
	return out
}

// City returns the readings of one city in dataset order. The slice is
// shared and must not be modified.
func (d Dataset) City(name string) []Reading {
	return d.byCity[name]
}

// Partition is the readings of a single city.
type Partition struct {
	City     string
	Readings []Reading
}

// Partitions splits the dataset by city, in order of first appearance.
func (d Dataset) Partitions() []Partition {
	parts := make([]Partition, 0, len(d.cities))
	for _, c := range d.cities {
		parts = append(parts, Partition{City: c, Readings: d.byCity[c]})
	}
	return parts
}
