// README: Default payload builders used to shape outbound snapshots.
package trip

// The demo profiles mirror the simulator's seed data; they are replaced as
// soon as a real request or accept supplies actual values.

func defaultStops() TripStops {
	return TripStops{
		Start: Stop{Address: "Origen Demo", Lat: -34.6037, Lon: -58.3816, Index: 0},
		End:   Stop{Address: "Destino Demo", Lat: -34.6157, Lon: -58.4333, Index: 1},
		Stops: []Stop{},
	}
}

func defaultDriver() DriverProfile {
	return DriverProfile{
		DriverID:   "driver-demo",
		FullName:   "Conductor Demo",
		Rating:     4.5,
		Selfie:     "https://i.imgur.com/driver-demo.jpg",
		TotalTrips: 100,
		CarModel:   "Toyota Corolla",
		CarColor:   "Blanco",
		CarPlate:   "ABC-123",
		Phone:      "+54 9 11 0000-0000",
	}
}

func defaultPassenger() PassengerProfile {
	return PassengerProfile{
		PassengerID: "passenger-demo",
		FullName:    "Pasajero Demo",
		Rating:      4.5,
		Selfie:      "https://i.imgur.com/passenger-demo.jpg",
		TotalTrips:  50,
		Phone:       "+54 9 11 0000-0000",
	}
}

func defaultPayment() Payment {
	return Payment{Type: "card"}
}

func newTripChange(status TripStatus) TripChange {
	return TripChange{Status: status, StatusText: status.String()}
}

func newTrip() Trip {
	return Trip{
		ServiceID:   "service-789",
		Stops:       defaultStops(),
		Driver:      defaultDriver(),
		Passenger:   defaultPassenger(),
		CarLocation: defaultStops().Start.Point(),
		Payment:     defaultPayment(),
		Filters:     Filters{},
		Change:      newTripChange(StatusIdle),
		Messages:    []Message{},
		Incidents:   []Incident{},
	}
}
